// Package httpapi exposes the arbiter over HTTP: health and metrics probes,
// simulation and verification endpoints, commitment lookups and a WebSocket
// event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"autobattler/arbiter/internal/arbiter"
	"autobattler/arbiter/internal/auth"
	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
	"autobattler/arbiter/internal/replay"
	"autobattler/arbiter/internal/roster"
	"autobattler/arbiter/internal/storage"
)

// Backend is the arbiter surface the handlers depend on.
type Backend interface {
	Simulate(ctx context.Context, in input.Combat) (combat.Result, error)
	SimulateMany(ctx context.Context, inputs []input.Combat, workers int) ([]arbiter.Outcome, error)
	Stream(ctx context.Context, in input.Combat, emit func(combat.Event) error) (combat.Result, error)
	Verify(ctx context.Context, req arbiter.VerifyRequest) (replay.Verification, combat.Result, error)
	VerifyBundle(ctx context.Context, dir string) (replay.Verification, combat.Result, error)
	Lookup(ctx context.Context, hash string) (storage.Record, error)
	History(ctx context.Context, correlationID string) ([]storage.Record, error)
	Units() []board.Unit
	Ready(ctx context.Context) error
	Stats() *arbiter.Stats
}

// RateLimiter gates how frequently a client may run simulations.
type RateLimiter interface {
	Allow(key string) bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger          *logging.Logger
	Backend         Backend
	Verifier        *auth.HMACTokenVerifier
	RateLimiter     RateLimiter
	TimeSource      func() time.Time
	ReplayStats     func() replay.StorageStats
	MaxPayloadBytes int64
	BatchLimit      int
	AllowedOrigins  []string
	PingInterval    time.Duration
}

const (
	defaultMaxPayloadBytes = 1 << 20
	defaultBatchLimit      = 256
	defaultPingInterval    = 30 * time.Second
)

// HandlerSet bundles the arbiter HTTP handlers.
type HandlerSet struct {
	logger       *logging.Logger
	backend      Backend
	verifier     *auth.HMACTokenVerifier
	rateLimiter  RateLimiter
	now          func() time.Time
	started      time.Time
	replayStats  func() replay.StorageStats
	maxPayload   int64
	batchLimit   int
	origins      map[string]struct{}
	pingInterval time.Duration
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	h := &HandlerSet{
		logger:       logger,
		backend:      opts.Backend,
		verifier:     opts.Verifier,
		rateLimiter:  opts.RateLimiter,
		now:          now,
		started:      now(),
		replayStats:  opts.ReplayStats,
		maxPayload:   opts.MaxPayloadBytes,
		batchLimit:   opts.BatchLimit,
		pingInterval: opts.PingInterval,
	}
	if h.maxPayload <= 0 {
		h.maxPayload = defaultMaxPayloadBytes
	}
	if h.batchLimit <= 0 {
		h.batchLimit = defaultBatchLimit
	}
	if h.pingInterval <= 0 {
		h.pingInterval = defaultPingInterval
	}
	if len(opts.AllowedOrigins) > 0 {
		h.origins = make(map[string]struct{}, len(opts.AllowedOrigins))
		for _, origin := range opts.AllowedOrigins {
			h.origins[strings.ToLower(strings.TrimSpace(origin))] = struct{}{}
		}
	}
	return h
}

// Router builds the gorilla/mux router serving every endpoint.
func (h *HandlerSet) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(logging.HTTPTraceMiddleware(h.logger))
	h.Register(router)
	return router
}

// Register attaches all handlers to the provided router.
func (h *HandlerSet) Register(router *mux.Router) {
	if router == nil {
		return
	}
	router.HandleFunc("/livez", h.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.ReadinessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/v1").Subrouter()
	api.Handle("/simulate", h.guard(auth.ScopeSimulate, true, h.SimulateHandler())).Methods(http.MethodPost)
	api.Handle("/simulate/batch", h.guard(auth.ScopeSimulate, true, h.BatchHandler())).Methods(http.MethodPost)
	api.Handle("/verify", h.guard(auth.ScopeVerify, true, h.VerifyHandler())).Methods(http.MethodPost)
	api.Handle("/results/{hash}", h.guard(auth.ScopeRead, false, h.ResultHandler())).Methods(http.MethodGet)
	api.Handle("/results/{hash}/verify", h.guard(auth.ScopeVerify, true, h.StoredVerifyHandler())).Methods(http.MethodPost)
	api.Handle("/matches/{matchId}/results", h.guard(auth.ScopeRead, false, h.HistoryHandler())).Methods(http.MethodGet)
	api.Handle("/units", h.guard(auth.ScopeRead, false, h.UnitsHandler())).Methods(http.MethodGet)
	api.Handle("/stream", h.guard(auth.ScopeSimulate, true, h.StreamHandler())).Methods(http.MethodGet)
}

// guard applies bearer auth and, for compute-heavy routes, the rate limiter.
func (h *HandlerSet) guard(scope string, limited bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.LoggerFromContext(r.Context()).With(
			logging.String("path", r.URL.Path),
			logging.String("remote_addr", r.RemoteAddr),
		)
		client := clientKey(r)
		if h.verifier != nil {
			claims, err := h.verifier.Verify(auth.TokenFromRequest(r))
			if err != nil {
				reqLogger.Warn("request denied: invalid token", logging.Error(err))
				writeProblem(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
				return
			}
			if !claims.Allows(scope) {
				reqLogger.Warn("request denied: missing scope", logging.String("scope", scope), logging.String("subject", claims.Subject))
				writeProblem(w, http.StatusForbidden, "forbidden", "token lacks scope "+scope, nil)
				return
			}
			client = claims.Subject
		}
		if limited && h.rateLimiter != nil && !h.rateLimiter.Allow(client) {
			reqLogger.Warn("request denied: rate limit exceeded", logging.String("client", client))
			writeProblem(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether the commitment store answers.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Units         int     `json:"units"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok", UptimeSeconds: h.now().Sub(h.started).Seconds()}
		if h.backend == nil {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Message: "arbiter not configured"})
			return
		}
		resp.Units = len(h.backend.Units())
		if err := h.backend.Ready(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			resp.Status = "error"
			resp.Message = err.Error()
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snapshot arbiter.Snapshot
		if h.backend != nil {
			snapshot = h.backend.Stats().Snapshot()
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetric(w, "arbiter_uptime_seconds", "gauge", "Arbiter uptime in seconds.", fmt.Sprintf("%.0f", h.now().Sub(h.started).Seconds()))
		counters := []struct {
			name, help string
			value      uint64
		}{
			{"arbiter_simulations_total", "Simulations completed.", snapshot.Simulations},
			{"arbiter_rejected_total", "Inputs rejected by validation or hydration.", snapshot.Rejected},
			{"arbiter_draws_total", "Simulations that ended in a draw.", snapshot.Draws},
			{"arbiter_faults_total", "Simulations converted to a fault draw.", snapshot.Faults},
			{"arbiter_attack_limits_total", "Simulations stopped by the attack ceiling.", snapshot.AttackLimits},
			{"arbiter_verifications_total", "Verification requests served.", snapshot.Verifications},
			{"arbiter_verification_mismatches_total", "Verifications whose hash differed.", snapshot.Mismatches},
			{"arbiter_persist_failures_total", "Bundle or commitment writes that failed.", snapshot.PersistFailures},
			{"arbiter_rng_calls_total", "Random draws consumed across simulations.", snapshot.RNGCalls},
			{"arbiter_steps_total", "Combat log steps across simulations.", snapshot.Steps},
		}
		for _, counter := range counters {
			writeMetric(w, counter.name, "counter", counter.help, fmt.Sprintf("%d", counter.value))
		}
		writeMetric(w, "arbiter_simulation_seconds_total", "counter", "Wall time spent simulating.", fmt.Sprintf("%.6f", snapshot.Duration.Seconds()))
		if h.replayStats != nil {
			stats := h.replayStats()
			writeMetric(w, "arbiter_replay_bundles", "gauge", "Replay bundles retained on disk.", fmt.Sprintf("%d", stats.Bundles))
			writeMetric(w, "arbiter_replay_incomplete", "gauge", "Bundle directories still missing a header.", fmt.Sprintf("%d", stats.Incomplete))
			writeMetric(w, "arbiter_replay_bytes", "gauge", "Disk footprint of retained bundles in bytes.", fmt.Sprintf("%d", stats.Bytes))
			writeMetric(w, "arbiter_replay_removed_total", "counter", "Bundles pruned by retention.", fmt.Sprintf("%d", stats.Removed))
		}
	}
}

func writeMetric(w io.Writer, name, kind, help, value string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %s\n", name, value)
}

// SimulateHandler resolves one combat input.
func (h *HandlerSet) SimulateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in input.Combat
		if !h.decode(w, r, &in) {
			return
		}
		result, err := h.backend.Simulate(r.Context(), in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// BatchRequest carries independent inputs for SimulateMany.
type BatchRequest struct {
	Inputs  []input.Combat `json:"inputs"`
	Workers int            `json:"workers,omitempty"`
}

// BatchItem is one entry of a batch response, in request order.
type BatchItem struct {
	Result *combat.Result `json:"result,omitempty"`
	Error  *Problem       `json:"error,omitempty"`
}

// BatchHandler runs a batch on the bounded worker pool.
func (h *HandlerSet) BatchHandler() http.HandlerFunc {
	type response struct {
		Results []BatchItem `json:"results"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if !h.decode(w, r, &req) {
			return
		}
		if len(req.Inputs) > h.batchLimit {
			writeProblem(w, http.StatusRequestEntityTooLarge, "batch_too_large", fmt.Sprintf("batch holds %d inputs, limit is %d", len(req.Inputs), h.batchLimit), nil)
			return
		}
		outcomes, err := h.backend.SimulateMany(r.Context(), req.Inputs, req.Workers)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp := response{Results: make([]BatchItem, len(outcomes))}
		for i := range outcomes {
			if outcomes[i].Err != nil {
				_, problem := classify(outcomes[i].Err)
				resp.Results[i] = BatchItem{Error: &problem}
				continue
			}
			resp.Results[i] = BatchItem{Result: &outcomes[i].Result}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// VerifyHandler re-simulates an input against a claimed commitment. A hash
// mismatch is a successful answer with match=false.
func (h *HandlerSet) VerifyHandler() http.HandlerFunc {
	type response struct {
		Match        bool                `json:"match"`
		Verification replay.Verification `json:"verification"`
		Result       combat.Result       `json:"result"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req arbiter.VerifyRequest
		if !h.decode(w, r, &req) {
			return
		}
		verification, result, err := h.backend.Verify(r.Context(), req)
		if err != nil && !errors.Is(err, replay.ErrHashMismatch) {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Match: verification.HashMatch, Verification: verification, Result: result})
	}
}

// ResultHandler returns a stored commitment by hash.
func (h *HandlerSet) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := h.backend.Lookup(r.Context(), mux.Vars(r)["hash"])
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// StoredVerifyHandler replays the bundle persisted for a stored commitment.
func (h *HandlerSet) StoredVerifyHandler() http.HandlerFunc {
	type response struct {
		Match        bool                `json:"match"`
		BundleDir    string              `json:"bundleDir"`
		Verification replay.Verification `json:"verification"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.backend == nil {
			writeProblem(w, http.StatusServiceUnavailable, "unavailable", "arbiter not configured", nil)
			return
		}
		record, err := h.backend.Lookup(r.Context(), mux.Vars(r)["hash"])
		if err != nil {
			h.fail(w, r, err)
			return
		}
		//1.- Results committed without replay persistence have nothing to re-run.
		if record.BundleDir == "" {
			writeProblem(w, http.StatusNotFound, "bundle_missing", "no replay bundle recorded for "+record.ResultHash, nil)
			return
		}
		verification, _, err := h.backend.VerifyBundle(r.Context(), record.BundleDir)
		if err != nil && !errors.Is(err, replay.ErrHashMismatch) {
			h.fail(w, r, err)
			return
		}
		//2.- The bundle must also still commit to the hash it was stored under.
		match := verification.HashMatch && verification.ExpectedHash == record.ResultHash
		writeJSON(w, http.StatusOK, response{Match: match, BundleDir: record.BundleDir, Verification: verification})
	}
}

// HistoryHandler returns every stored commitment of one match.
func (h *HandlerSet) HistoryHandler() http.HandlerFunc {
	type response struct {
		MatchID string           `json:"matchId"`
		Results []storage.Record `json:"results"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := mux.Vars(r)["matchId"]
		records, err := h.backend.History(r.Context(), matchID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response{MatchID: matchID, Results: records})
	}
}

// UnitsHandler lists the unit catalogue.
func (h *HandlerSet) UnitsHandler() http.HandlerFunc {
	type response struct {
		Units []board.Unit `json:"units"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Units: h.backend.Units()})
	}
}

func (h *HandlerSet) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.backend == nil {
		writeProblem(w, http.StatusServiceUnavailable, "unavailable", "arbiter not configured", nil)
		return false
	}
	body := http.MaxBytesReader(w, r.Body, h.maxPayload)
	decoder := json.NewDecoder(body)
	//1.- Seeds stay json.Number so large values are never rounded through float64.
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
			return false
		}
		writeProblem(w, http.StatusBadRequest, "malformed_json", err.Error(), nil)
		return false
	}
	return true
}

func (h *HandlerSet) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, problem := classify(err)
	if status == http.StatusInternalServerError {
		logging.LoggerFromContext(r.Context()).Error("request failed", logging.String("path", r.URL.Path), logging.Error(err))
	}
	writeProblem(w, status, problem.Code, problem.Message, problem.Fields)
}

// Problem is the JSON error body returned by every endpoint.
type Problem struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []input.FieldError `json:"fields,omitempty"`
}

func classify(err error) (int, Problem) {
	var invalid *input.ValidationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, Problem{Code: "invalid_input", Message: err.Error(), Fields: invalid.Errors}
	case errors.Is(err, roster.ErrUnknownUnit):
		return http.StatusBadRequest, Problem{Code: "unknown_unit", Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, Problem{Code: "not_found", Message: err.Error()}
	case errors.Is(err, arbiter.ErrStoreDisabled):
		return http.StatusServiceUnavailable, Problem{Code: "store_disabled", Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, Problem{Code: "cancelled", Message: err.Error()}
	default:
		return http.StatusInternalServerError, Problem{Code: "internal", Message: "internal error"}
	}
}

func writeProblem(w http.ResponseWriter, status int, code, message string, fields []input.FieldError) {
	writeJSON(w, status, struct {
		Error Problem `json:"error"`
	}{Error: Problem{Code: code, Message: message, Fields: fields}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
