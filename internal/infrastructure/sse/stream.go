// Package sse turns bus subscriptions into live Server-Sent-Events streams.
//
// Each stream is a one-shot producer for a single HTTP connection: it
// subscribes on open, relays every bus event as a discrete wire record,
// keeps idle proxies alive with periodic pings, and detaches on close. There
// is no reconnect logic here; clients fall back to polling on their own.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/bus"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

type Streamer struct {
	bus          *bus.Bus
	logger       *zap.SugaredLogger
	metrics      *metrics.Metrics
	pingInterval time.Duration
}

func NewStreamer(b *bus.Bus, logger *zap.SugaredLogger, m *metrics.Metrics, pingInterval time.Duration) *Streamer {
	if pingInterval <= 0 {
		pingInterval = 25 * time.Second
	}
	return &Streamer{
		bus:          b,
		logger:       logger,
		metrics:      m,
		pingInterval: pingInterval,
	}
}

// Encode renders one SSE wire record: `data: <JSON>\n\n`.
func Encode(ev domain.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	record := make([]byte, 0, len(payload)+8)
	record = append(record, "data: "...)
	record = append(record, payload...)
	record = append(record, "\n\n"...)
	return record, nil
}

// ServeUser streams the user's bus events over w until the client
// disconnects. The bus registration and the keep-alive timer are released on
// every exit path, exactly once.
func (s *Streamer) ServeUser(w http.ResponseWriter, r *http.Request, userID int64) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	write := func(ev domain.Event) error {
		record, err := Encode(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write(record); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// confirm the stream is live before the first real event
	if err := write(domain.NewConnectedEvent()); err != nil {
		return err
	}

	events, off := s.bus.SubscribeChan(userID)
	defer off()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	s.metrics.ActiveStreams.WithLabelValues("sse").Inc()
	defer s.metrics.ActiveStreams.WithLabelValues("sse").Dec()

	s.logger.Infow("sse stream opened", "user_id", userID)
	defer s.logger.Infow("sse stream closed", "user_id", userID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ping.C:
			if err := write(domain.NewPingEvent(now)); err != nil {
				return fmt.Errorf("keep-alive write: %w", err)
			}
		case ev := <-events:
			if err := write(ev); err != nil {
				return fmt.Errorf("event write: %w", err)
			}
		}
	}
}
