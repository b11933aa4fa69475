package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ErrUpstream marks failures of the web server the sensors come from.
var ErrUpstream = errors.New("upstream unavailable")

// PlanRequest asks for a tour to be planned and flown. Zero config fields
// take the survey defaults; omitted noFlyZones fall back to the zones the
// server was started with. With a date and no targets, the day's sensors
// are downloaded from the configured data source.
type PlanRequest struct {
	Launch            Point     `json:"launch"`
	Targets           []Target  `json:"targets"`
	Date              string    `json:"date,omitempty"` // DD-MM-YYYY
	NoFlyZones        []Polygon `json:"noFlyZones"`
	Seed              int64     `json:"seed"`
	Config            Config    `json:"config"`
	IncludeNoFlyZones bool      `json:"includeNoFlyZones,omitempty"` // geojson output only
}

type PlanResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	TourLength float64       `json:"tourLength,omitempty"`
	Result     *FlightResult `json:"result,omitempty"`
}

type Server struct {
	defaultZones []Polygon
	src          *DataSource
	metrics      *FlightCollector
	log          *slog.Logger
}

// NewServer constructs the HTTP router. src and metrics may be nil.
func NewServer(defaultZones []Polygon, src *DataSource, metrics *FlightCollector, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{defaultZones: defaultZones, src: src, metrics: metrics, log: log}

	r := chi.NewRouter()
	r.Use(corsMiddleware)
	if metrics != nil {
		r.Use(metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/health", s.healthHandler)
	r.Post("/plan", s.planHandler)
	r.Post("/plan/geojson", s.planGeoJSONHandler)

	return r
}

// corsMiddleware allows cross-origin calls from any origin and answers
// preflight requests itself.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthHandler reports readiness and the number of server-side no-fly zones.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ready",
		"noFlyZones": len(s.defaultZones),
		"dataSource": s.src != nil,
	})
}

// planHandler flies the requested tour and responds with the full FlightResult.
func (s *Server) planHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlan(w, r)
	if !ok {
		return
	}

	result, _, err := s.plan(r.Context(), req)
	if err != nil {
		s.planError(w, err)
		return
	}

	resp := PlanResponse{
		Success:    result.Completed(),
		TourLength: TourLength(req.Launch, result.Tour),
		Result:     result,
	}
	if !resp.Success {
		resp.Message = "flight ended early: " + string(result.Outcome)
	}
	writeJSON(w, http.StatusOK, resp)
}

// planGeoJSONHandler flies the requested tour and responds with its readings
// map. The flight ID and outcome travel in response headers.
func (s *Server) planGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlan(w, r)
	if !ok {
		return
	}

	result, zones, err := s.plan(r.Context(), req)
	if err != nil {
		s.planError(w, err)
		return
	}
	if !req.IncludeNoFlyZones {
		zones = nil
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Flight-Id", result.ID)
	w.Header().Set("X-Flight-Outcome", string(result.Outcome))
	_ = json.NewEncoder(w).Encode(ReadingsMap(result, zones))
}

func (s *Server) decodePlan(w http.ResponseWriter, r *http.Request) (PlanRequest, bool) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("invalid request body", slog.Any("error", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *Server) planError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrUpstream) {
		status = http.StatusBadGateway
	}
	s.log.Warn("plan rejected", slog.Int("status", status), slog.Any("error", err))
	writeJSON(w, status, PlanResponse{Success: false, Message: err.Error()})
}

// plan validates the request, orders the targets and flies them.
func (s *Server) plan(ctx context.Context, req PlanRequest) (*FlightResult, []Polygon, error) {
	targets, err := s.targets(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	zones := req.NoFlyZones
	if zones == nil {
		zones = s.defaultZones
	}

	sim, err := NewSimulator(req.Config.WithDefaults(), zones, s.log)
	if err != nil {
		return nil, nil, err
	}

	tour := PlanTour(req.Launch, targets)
	result, err := sim.Fly(req.Launch, tour, req.Seed)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.ObserveFlight(result)

	s.log.Info("flight planned",
		slog.String("flight", result.ID),
		slog.Int("sensors", len(tour)),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("moves", result.Final.Moves))
	return result, sim.Obstacles(), nil
}

// targets returns the request's targets, or downloads the sensors for its
// date when none are given.
func (s *Server) targets(ctx context.Context, req PlanRequest) ([]Target, error) {
	if len(req.Targets) > 0 || req.Date == "" {
		return req.Targets, nil
	}
	if s.src == nil {
		return nil, errors.New("no data source configured for dated requests")
	}
	date, err := time.Parse("02-01-2006", req.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", req.Date, err)
	}
	targets, err := s.src.Targets(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return targets, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
