package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	aireg_protocol "aireg-cli/solana"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AgentReader is the read side of the agent registry.
type AgentReader interface {
	Get(ctx context.Context, agentID string, owner solana.PublicKey) (*aireg_protocol.AgentEntry, error)
	Search(ctx context.Context, filter aireg_protocol.EntryFilter) ([]*aireg_protocol.AgentEntry, error)
	History(ctx context.Context, agentID string, owner solana.PublicKey, limit int) ([]aireg_protocol.HistoryEvent, error)
}

// McpServerReader is the read side of the MCP server registry.
type McpServerReader interface {
	Get(ctx context.Context, serverID string, owner solana.PublicKey) (*aireg_protocol.McpServerEntry, error)
	Search(ctx context.Context, filter aireg_protocol.EntryFilter) ([]*aireg_protocol.McpServerEntry, error)
	History(ctx context.Context, serverID string, owner solana.PublicKey, limit int) ([]aireg_protocol.HistoryEvent, error)
}

// ProfileLister exposes the addresses of the locally stored profiles.
type ProfileLister interface {
	Addresses() (map[string]solana.PublicKey, error)
}

// Handler serves read-only JSON lookups against the registries.
type Handler struct {
	agents   AgentReader
	servers  McpServerReader
	profiles ProfileLister
	gatherer prometheus.Gatherer
	log      *zap.Logger
	timeout  time.Duration
}

type Option func(*Handler)

// WithProfiles enables GET /profiles.
func WithProfiles(p ProfileLister) Option {
	return func(h *Handler) { h.profiles = p }
}

// WithMetrics enables GET /metrics for g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithRequestTimeout bounds each request's registry calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

func NewHandler(agents AgentReader, servers McpServerReader, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		agents:  agents,
		servers: servers,
		log:     log,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the chi router with every route mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/livez", h.handleLiveness)

	r.Get("/agents", h.handleSearchAgents)
	r.Get("/agents/{owner}/{id}", h.handleGetAgent)
	r.Get("/agents/{owner}/{id}/history", h.handleAgentHistory)

	r.Get("/servers", h.handleSearchServers)
	r.Get("/servers/{owner}/{id}", h.handleGetServer)
	r.Get("/servers/{owner}/{id}/history", h.handleServerHistory)

	if h.profiles != nil {
		r.Get("/profiles", h.handleProfiles)
	}
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handler) handleProfiles(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.profiles.Addresses()
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make(map[string]string, len(addrs))
	for name, key := range addrs {
		out[name] = key.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	entry, err := h.agents.Get(ctx, chi.URLParam(r, "id"), owner)
	h.writeEntry(w, entry, err)
}

func (h *Handler) handleGetServer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	entry, err := h.servers.Get(ctx, chi.URLParam(r, "id"), owner)
	h.writeEntry(w, entry, err)
}

func (h *Handler) writeEntry(w http.ResponseWriter, entry any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	switch e := entry.(type) {
	case *aireg_protocol.AgentEntry:
		if e == nil {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
	case *aireg_protocol.McpServerEntry:
		if e == nil {
			writeError(w, http.StatusNotFound, "mcp server not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleSearchAgents(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	entries, err := h.agents.Search(ctx, filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSearchServers(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	entries, err := h.servers.Search(ctx, filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	events, err := h.agents.History(ctx, chi.URLParam(r, "id"), owner, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleServerHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	events, err := h.servers.History(ctx, chi.URLParam(r, "id"), owner, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// fail maps library errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, aireg_protocol.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, aireg_protocol.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, aireg_protocol.ErrConnection), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		h.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func ownerParam(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	owner, err := solana.PublicKeyFromBase58(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner public key")
		return solana.PublicKey{}, false
	}
	return owner, true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

// filterParams reads owner, q, status and tag (both comma separated) and limit.
func filterParams(w http.ResponseWriter, r *http.Request) (aireg_protocol.EntryFilter, bool) {
	q := r.URL.Query()
	filter := aireg_protocol.EntryFilter{Query: q.Get("q")}
	if raw := q.Get("owner"); raw != "" {
		owner, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid owner public key")
			return filter, false
		}
		filter.Owner = &owner
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := aireg_protocol.ParseStatus(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return filter, false
			}
			filter.Status = append(filter.Status, s)
		}
	}
	if raw := q.Get("tag"); raw != "" {
		filter.Tags = strings.Split(raw, ",")
	}
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return filter, false
	}
	filter.Limit = limit
	return filter, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
