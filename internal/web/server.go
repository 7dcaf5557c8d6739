package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/events"
)

const (
	snapshotPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
)

type balanceSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error)
}

type actionReader interface {
	EventsAfter(index uint64) ([]domain.ActionRecordIndexed, error)
}

// Server exposes metrics, the audit trail and SSE streams of snapshots and runs.
type Server struct {
	Addr        string
	Store       balanceSnapshotReader
	ActionStore actionReader
	Runs        *events.RunBroadcaster
	logger      *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, logger *zap.Logger, store balanceSnapshotReader, actionStore actionReader, runs *events.RunBroadcaster) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Store: store, ActionStore: actionStore, Runs: runs, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/actions", s.handleActions)
	mux.HandleFunc("/balance/stream", s.handleBalanceStream)
	mux.HandleFunc("/runs/stream", s.handleRunStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleActions returns audit records after the optional ?after=<index>.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.ActionStore == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "action store not available")
		return
	}

	after := uint64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid after index", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	records, err := s.ActionStore.EventsAfter(after)
	if err != nil {
		s.logger.Error("failed to load actions", zap.Error(err))
		http.Error(w, "failed to load actions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []domain.ActionRecordIndexed{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.Warn("failed to write actions", zap.Error(err))
	}
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		return
	}

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.logger.Error("balance stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("balance stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "run events not available")
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		return
	}

	ch := s.Runs.Subscribe()
	defer s.Runs.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	// flush headers so clients see the stream open before the first run
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case summary, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(summary)
			if err != nil {
				s.logger.Warn("encode run summary", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: run\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}
