package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landuse-cli/internal/advisor"
	"github.com/sells-group/landuse-cli/internal/aoi"
	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/internal/suitability"
	"github.com/sells-group/landuse-cli/internal/tiles"
)

const maxBodyBytes = 10 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring and advisory HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		a, err := newAPI(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(a, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type adviser interface {
	Advise(ctx context.Context, data any, userType string) (*advisor.Advisory, error)
}

type api struct {
	scorer      *suitability.Scorer
	advisor     adviser
	concurrency int
}

// newAPI builds the handler dependencies from c. The advisor is left unset
// when no provider key is configured; /api/advise then answers 503.
func newAPI(c *config.Config) (*api, error) {
	scorer, err := suitability.NewValidated(c.Scoring)
	if err != nil {
		return nil, err
	}
	a := &api{scorer: scorer, concurrency: c.Analysis.Concurrency}

	if !c.AdvisorConfigured() {
		zap.L().Warn("serve: no advisor key configured; /api/advise disabled")
		return a, nil
	}
	adv, err := advisor.NewFromConfig(c)
	if err != nil {
		return nil, err
	}
	a.advisor = adv
	return a, nil
}

func buildRouter(a *api, origins []string) http.Handler {
	if a.scorer == nil {
		a.scorer = suitability.NewDefault()
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(sub chi.Router) {
		sub.Post("/score", a.handleScore)
		sub.Post("/advise", a.handleAdvise)
		sub.Post("/tiles/aggregate", a.handleTilesAggregate)
	})
	return r
}

// requestID tags each request with an X-Request-ID, generating one if absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v before writing the header, so an encode failure is
// reported as a 500 instead of an empty response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var buf json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&buf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return buf, true
}

func (a *api) handleScore(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	p, err := rescore(body, a.scorer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type adviseRequest struct {
	UserType string          `json:"user_type"`
	Data     json.RawMessage `json:"data"`
}

func (a *api) handleAdvise(w http.ResponseWriter, r *http.Request) {
	if a.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req adviseRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	data, err := adviceInput(req.Data, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be a JSON object")
		return
	}

	adv, err := a.advisor.Advise(r.Context(), data, req.UserType)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, adv)
	case errors.Is(err, advisor.ErrInvalidResponseFormat):
		writeError(w, http.StatusUnprocessableEntity, "model reply was not valid JSON")
	case errors.Is(err, advisor.ErrCompletion):
		zap.L().Warn("advise: completion failed", zap.String("request_id", w.Header().Get("X-Request-ID")), zap.Error(err))
		writeError(w, http.StatusBadGateway, "advisor provider error")
	default:
		writeError(w, http.StatusInternalServerError, "advise failed")
	}
}

type tilesAggregateResponse struct {
	Aggregate   tiles.Aggregated `json:"aggregate"`
	AreaProfile map[string]any   `json:"area_profile"`
	Selected    []string         `json:"selected"`
}

// handleTilesAggregate scores the posted FeatureCollection and aggregates the
// tiles intersecting ?bbox=minLon,minLat,maxLon,maxLat, or all tiles.
func (a *api) handleTilesAggregate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	fc, err := tiles.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tile collection")
		return
	}
	if err := tiles.ScoreCollection(r.Context(), fc, a.scorer, a.concurrency); err != nil {
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	selected := fc.Features
	if q := r.URL.Query().Get("bbox"); q != "" {
		bbox, err := aoi.ParseBBox(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bbox")
			return
		}
		selected = tiles.Select(fc, bbox)
	}

	resp := tilesAggregateResponse{Aggregate: tiles.Aggregate(selected), Selected: []string{}}
	resp.AreaProfile = tiles.AreaProfile(resp.Aggregate)
	for _, f := range selected {
		resp.Selected = append(resp.Selected, f.TileID())
	}
	writeJSON(w, http.StatusOK, resp)
}
