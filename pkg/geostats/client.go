// Package geostats is a client for a region-reduction service: it filters a
// remote imagery catalog, composites the matching images, and reduces the
// result to per-band scalars over a GeoJSON geometry.
package geostats

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/resilience"
)

const serviceName = "geostats"

// Source kinds.
const (
	KindImage      = "image"
	KindCollection = "collection"
)

// Composite operations applied across a filtered collection.
const (
	CompositeMean   = "mean"
	CompositeMedian = "median"
	CompositeSum    = "sum"
	CompositeFirst  = "first"
)

// Region reducers.
const (
	ReducerMean      = "mean"
	ReducerSum       = "sum"
	ReducerCount     = "count"
	ReducerHistogram = "frequency_histogram"
)

// Client issues region reductions.
type Client interface {
	Reduce(ctx context.Context, req ReduceRequest) (*ReduceResponse, error)
	BandNames(ctx context.Context, req BandsRequest) ([]string, error)
}

// Filter restricts a collection by an image property, e.g.
// CLOUDY_PIXEL_PERCENTAGE lt 40.
type Filter struct {
	Property string  `json:"property"`
	Op       string  `json:"op"`
	Value    float64 `json:"value"`
}

// Derive computes a band per image before compositing.
type Derive struct {
	Op    string   `json:"op"` // normalized_difference
	Bands []string `json:"bands"`
	Name  string   `json:"name"`
}

// Mask turns the composite into a 0/1 image by comparing it to Value.
type Mask struct {
	Op    string  `json:"op"` // gt, gte, lt
	Value float64 `json:"value"`
}

// Source selects and prepares the image to reduce.
type Source struct {
	Dataset      string   `json:"dataset"`
	Kind         string   `json:"kind"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	FilterBounds bool     `json:"filter_bounds,omitempty"`
	Filters      []Filter `json:"filters,omitempty"`
	Bands        []string `json:"bands,omitempty"`
	Derive       *Derive  `json:"derive,omitempty"`
	Composite    string   `json:"composite,omitempty"`
	Mask         *Mask    `json:"mask,omitempty"`
}

// ReduceRequest is the body of POST /v1/reduce.
type ReduceRequest struct {
	Geometry  json.RawMessage `json:"geometry"`
	Source    Source          `json:"source"`
	Reducer   string          `json:"reducer"`
	Scale     float64         `json:"scale"`
	MaxPixels float64         `json:"max_pixels,omitempty"`
}

// BandValue is the reduction of one band. Value is null when the region had
// no valid pixels. Histogram is set only for frequency histograms.
type BandValue struct {
	Band      string             `json:"band"`
	Value     *float64           `json:"value"`
	Histogram map[string]float64 `json:"histogram,omitempty"`
}

// ReduceResponse lists each band's reduction in image band order.
type ReduceResponse struct {
	Bands []BandValue `json:"bands"`
}

// First returns the first band's reduction, or nil when there are none.
func (r *ReduceResponse) First() *BandValue {
	if r == nil || len(r.Bands) == 0 {
		return nil
	}
	return &r.Bands[0]
}

// FirstValue returns the first band's value, or nil.
func (r *ReduceResponse) FirstValue() *float64 {
	if b := r.First(); b != nil {
		return b.Value
	}
	return nil
}

// BandsRequest is the body of POST /v1/bands. It returns the band names of
// the first image matching Source.
type BandsRequest struct {
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Source   Source          `json:"source"`
}

type bandsResponse struct {
	Bands []string `json:"bands"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit paces requests to perSec with the given burst. Zero or
// negative disables pacing.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithCache keeps up to size successful responses keyed by request body, so
// collectors re-reading the same layer hit the service once. Zero disables it.
func WithCache(size int) Option {
	return func(c *httpClient) {
		if size <= 0 {
			c.cache = nil
			return
		}
		cache, err := lru.New[string, []byte](size)
		if err != nil {
			return
		}
		c.cache = cache
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	cache   *lru.Cache[string, []byte]
}

// NewClient creates a geostats client for baseURL. apiKey may be empty for
// unauthenticated deployments.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Reduce(ctx context.Context, req ReduceRequest) (*ReduceResponse, error) {
	var out ReduceResponse
	if err := c.post(ctx, "/v1/reduce", req, &out); err != nil {
		return nil, eris.Wrapf(err, "geostats: reduce %s", req.Source.Dataset)
	}
	return &out, nil
}

func (c *httpClient) BandNames(ctx context.Context, req BandsRequest) ([]string, error) {
	var out bandsResponse
	if err := c.post(ctx, "/v1/bands", req, &out); err != nil {
		return nil, eris.Wrapf(err, "geostats: band names %s", req.Source.Dataset)
	}
	return out.Bands, nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "geostats: marshal request")
	}

	var key string
	if c.cache != nil {
		sum := sha256.Sum256(body)
		key = path + ":" + hex.EncodeToString(sum[:])
		if cached, ok := c.cache.Get(key); ok {
			return eris.Wrap(json.Unmarshal(cached, out), "geostats: unmarshal cached response")
		}
	}

	respBody, err := resilience.Call(ctx, c.retry, serviceName+path, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "geostats: rate limit wait")
			}
		}
		b, err := c.do(ctx, path, body)
		monitoring.RecordExternalRequest(serviceName, err == nil)
		return b, err
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "geostats: unmarshal response")
	}
	if c.cache != nil {
		c.cache.Add(key, respBody)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "geostats: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "geostats: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geostats: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError(serviceName, resp.StatusCode, respBody)
	}
	return respBody, nil
}
