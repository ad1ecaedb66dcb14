// Package server answers queries with the current snapshot. It is the
// serving execution context: one handler flow per inbound request,
// unbounded, all read-only against the store.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/whoisthere/whoisthere/internal/appctx"
	"github.com/whoisthere/whoisthere/internal/metrics"
	"github.com/whoisthere/whoisthere/internal/rdns"
	"github.com/whoisthere/whoisthere/internal/stats"
)

type Server struct {
	logger   zerolog.Logger
	store    *stats.Store
	metrics  *metrics.Metrics
	resolver *rdns.Resolver // nil when --resolve is off
	addr     string

	httpServer *http.Server
}

func New(
	logger zerolog.Logger,
	store *stats.Store,
	m *metrics.Metrics,
	resolver *rdns.Resolver,
	registry *prometheus.Registry,
	listenAddr net.IP,
	listenPort uint16,
) *Server {
	s := &Server{
		logger:   logger,
		store:    store,
		metrics:  m,
		resolver: resolver,
		addr:     net.JoinHostPort(listenAddr.String(), strconv.Itoa(int(listenPort))),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/resolved", s.handleResolved)
	// Every other path answers with the snapshot document.
	mux.HandleFunc("/", s.handleSnapshot)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
// A listener failure is fatal to the whole process, matching the capture
// side's fail-fast contract.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.addr).Msg("query server listening")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes the listener; in-flight snapshot writes are abandoned,
// termination is immediate by design.
func (s *Server) Shutdown() {
	_ = s.httpServer.Close()
}

// handleSnapshot serializes the current snapshot in the same shape as the
// persisted document. It cannot fail on store state: serialization of a
// table is infallible, so only transport-level failures can lose the
// response.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := appctx.WithNewTraceID(r.Context())
	s.metrics.QueriesTotal.Inc()

	snapshot := s.store.Snapshot()
	s.logger.Debug().Ctx(ctx).
		Str("remote", r.RemoteAddr).
		Int("pairs", len(snapshot)).
		Msg("snapshot query")

	writeJSON(w, snapshot)
}

// resolvedRecord is one table entry of the resolved view: the aggregate
// plus best-effort PTR names for both ends.
type resolvedRecord struct {
	TotalLength stats.Uint128 `json:"total_length"`
	TotalCount  stats.Uint128 `json:"total_count"`
	SourceHost  string        `json:"source_host"`
	DestHost    string        `json:"dest_host"`
}

// handleResolved serves the snapshot annotated with reverse-DNS names.
// Without a resolver the view degrades to empty names rather than erroring;
// the query interface never returns an application-level failure.
func (s *Server) handleResolved(w http.ResponseWriter, r *http.Request) {
	ctx := appctx.WithNewTraceID(r.Context())
	s.metrics.QueriesTotal.Inc()

	snapshot := s.store.Snapshot()
	doc := make(map[string]resolvedRecord, len(snapshot))
	for pair, rec := range snapshot {
		doc[pair.String()] = resolvedRecord{
			TotalLength: rec.TotalLength,
			TotalCount:  rec.TotalCount,
			SourceHost:  s.reverse(ctx, pair.Source()),
			DestHost:    s.reverse(ctx, pair.Destination()),
		}
	}

	s.logger.Debug().Ctx(ctx).
		Str("remote", r.RemoteAddr).
		Int("pairs", len(doc)).
		Msg("resolved query")

	writeJSON(w, doc)
}

func (s *Server) reverse(ctx context.Context, addr netip.Addr) string {
	if s.resolver == nil {
		return ""
	}
	return s.resolver.Reverse(ctx, addr)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	// Keep the '>' in pair keys literal rather than HTML-escaped.
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
