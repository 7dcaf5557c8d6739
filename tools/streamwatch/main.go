// Command streamwatch tails the rebalancer SSE streams and logs every event.
// With -conns > 1 it keeps that many subscribers open to load-test the server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/events"
)

type sseEvent struct {
	Name string
	Data string
}

func main() {
	var (
		targetURL string
		conns     int
		duration  time.Duration
	)
	flag.StringVar(&targetURL, "url", "http://localhost:8080/runs/stream", "SSE endpoint URL (/runs/stream or /balance/stream)")
	flag.IntVar(&conns, "conns", 1, "number of concurrent subscribers")
	flag.DurationVar(&duration, "dur", 0, "watch duration (0 for until interrupted)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if conns <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", conns))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     conns + 10,
			MaxIdleConnsPerHost: conns + 10,
			DisableCompression:  true,
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		},
	}

	var received, failed int64
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// only the first subscriber logs payloads
			verbose := id == 0
			err := watch(ctx, client, targetURL, func(ev sseEvent) {
				atomic.AddInt64(&received, 1)
				if verbose {
					logEvent(logger, ev)
				}
			})
			if err != nil && ctx.Err() == nil {
				atomic.AddInt64(&failed, 1)
				logger.Warn("subscriber stopped", zap.Int("id", id), zap.Error(err))
			}
		}(i)
	}
	wg.Wait()

	logger.Info("done",
		zap.Int("subscribers", conns),
		zap.Int64("events", atomic.LoadInt64(&received)),
		zap.Int64("failed", atomic.LoadInt64(&failed)))
}

func watch(ctx context.Context, client *http.Client, url string, onEvent func(sseEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	return readEvents(resp.Body, onEvent)
}

// readEvents parses a text/event-stream body. Comment lines (heartbeats) are skipped.
func readEvents(r io.Reader, onEvent func(sseEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Data != "" {
				onEvent(ev)
			}
			ev = sseEvent{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if ev.Data != "" {
				ev.Data += "\n"
			}
			ev.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return scanner.Err()
}

func logEvent(logger *zap.Logger, ev sseEvent) {
	switch ev.Name {
	case "run":
		var s events.RunSummary
		if err := json.Unmarshal([]byte(ev.Data), &s); err != nil {
			logger.Warn("bad run event", zap.Error(err))
			return
		}
		logger.Info("run",
			zap.String("run_id", s.RunID),
			zap.String("outcome", s.Outcome),
			zap.Bool("dry_run", s.DryRun),
			zap.Int("planned", s.Planned),
			zap.Int("completed", s.Completed),
			zap.String("error", s.Error))
	case "balance":
		var rec domain.BalanceSnapshotRecord
		if err := json.Unmarshal([]byte(ev.Data), &rec); err != nil {
			logger.Warn("bad balance event", zap.Error(err))
			return
		}
		for _, a := range rec.Snapshot.Assets {
			logger.Info("balance",
				zap.String("run_id", rec.RunID),
				zap.String("coin", a.CoinType),
				zap.String("amount", a.Balance.String()),
				zap.String("weight", a.Percentage.String()))
		}
	default:
		logger.Info("event", zap.String("name", ev.Name), zap.String("data", ev.Data))
	}
}
