package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the ISO 8601 calendar date layout used for analysis windows.
const DateLayout = "2006-01-02"

// Reserved profile keys. Statistics and attributes may not use these names.
const (
	KeyGeneratedAt    = "generated_at"
	KeyAnalysisWindow = "analysis_window"
	KeyGeometry       = "geometry"
	KeySuitability    = "suitability"
)

// ErrInvalidWindow is returned when an analysis window cannot be parsed or
// its start falls after its end.
var ErrInvalidWindow = errors.New("invalid analysis window")

// IsReservedKey reports whether key collides with a profile metadata field.
func IsReservedKey(key string) bool {
	switch key {
	case KeyGeneratedAt, KeyAnalysisWindow, KeyGeometry, KeySuitability:
		return true
	}
	return false
}

// AnalysisWindow is an inclusive pair of calendar dates.
type AnalysisWindow struct {
	Start time.Time
	End   time.Time
}

// ParseWindow parses two ISO calendar dates into an AnalysisWindow.
func ParseWindow(start, end string) (AnalysisWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return AnalysisWindow{}, eris.Wrapf(ErrInvalidWindow, "model: parse start date %q", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return AnalysisWindow{}, eris.Wrapf(ErrInvalidWindow, "model: parse end date %q", end)
	}
	if s.After(e) {
		return AnalysisWindow{}, eris.Wrapf(ErrInvalidWindow, "model: start %s is after end %s", start, end)
	}
	return AnalysisWindow{Start: s, End: e}, nil
}

// StartDate returns the window start as an ISO date.
func (w AnalysisWindow) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate returns the window end as an ISO date.
func (w AnalysisWindow) EndDate() string { return w.End.Format(DateLayout) }

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON encodes the window as {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}.
func (w AnalysisWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: w.StartDate(), End: w.EndDate()})
}

// UnmarshalJSON decodes and validates a window.
func (w *AnalysisWindow) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode analysis window")
	}
	parsed, err := ParseWindow(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Profile is the assembled set of layer statistics for one AOI and window.
// The geometry is carried as raw GeoJSON and never interpreted here.
type Profile struct {
	GeneratedAt time.Time
	Window      AnalysisWindow
	Geometry    json.RawMessage
	Stats       Stats
	Attributes  Attributes
	Suitability *Suitability
}

// WithSuitability returns a copy of p with the suitability result attached.
func (p Profile) WithSuitability(s Suitability) Profile {
	out := p.Clone()
	out.Suitability = &s
	return out
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	out.Stats = p.Stats.Clone()
	out.Attributes = p.Attributes.Clone()
	if p.Geometry != nil {
		out.Geometry = append(json.RawMessage(nil), p.Geometry...)
	}
	if p.Suitability != nil {
		s := *p.Suitability
		out.Suitability = &s
	}
	return out
}

// Flatten returns the profile as a single flat mapping, the shape handed to
// the LLM boundary.
func (p Profile) Flatten() map[string]any {
	out := make(map[string]any, len(p.Stats)+len(p.Attributes)+4)
	for k, v := range p.Attributes {
		out[k] = v
	}
	for k, v := range p.Stats {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = *v
	}
	out[KeyGeneratedAt] = p.GeneratedAt.UTC().Format(time.RFC3339Nano)
	out[KeyAnalysisWindow] = p.Window
	if len(p.Geometry) > 0 {
		out[KeyGeometry] = p.Geometry
	} else {
		out[KeyGeometry] = nil
	}
	if p.Suitability != nil {
		out[KeySuitability] = p.Suitability
	}
	return out
}

// MarshalJSON encodes the profile in its flat form. Map keys are emitted in
// sorted order, so output is stable for a given profile.
func (p Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Flatten())
}

// UnmarshalJSON decodes a flat profile. Numbers and nulls become statistics,
// strings become attributes and any other value is ignored.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode profile")
	}

	out := Profile{Stats: Stats{}, Attributes: Attributes{}}
	for k, v := range raw {
		switch k {
		case KeyGeneratedAt:
			var ts string
			if err := json.Unmarshal(v, &ts); err != nil {
				return eris.Wrap(err, "model: decode generated_at")
			}
			if ts == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return eris.Wrapf(err, "model: parse generated_at %q", ts)
			}
			out.GeneratedAt = t
		case KeyAnalysisWindow:
			if isNull(v) {
				continue
			}
			if err := json.Unmarshal(v, &out.Window); err != nil {
				return err
			}
		case KeyGeometry:
			if !isNull(v) {
				out.Geometry = append(json.RawMessage(nil), v...)
			}
		case KeySuitability:
			if isNull(v) {
				continue
			}
			var s Suitability
			if err := json.Unmarshal(v, &s); err != nil {
				return eris.Wrap(err, "model: decode suitability")
			}
			out.Suitability = &s
		default:
			decodeValue(&out, k, v)
		}
	}

	*p = out
	return nil
}

func decodeValue(p *Profile, key string, v json.RawMessage) {
	if isNull(v) {
		p.Stats.SetNull(key)
		return
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		p.Stats.Set(key, f)
		return
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		p.Attributes[key] = s
	}
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
