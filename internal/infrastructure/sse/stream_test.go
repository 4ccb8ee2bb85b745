package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/bus"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// syncRecorder guards the recorder so the test can poll the body while the
// stream goroutine is still writing.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{rec: httptest.NewRecorder()}
}

func (r *syncRecorder) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Header()
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Write(p)
}

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.WriteHeader(code)
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Body.String()
}

func TestEncode(t *testing.T) {
	record, err := Encode(domain.NewReadEvent(5, 2, 10))
	require.NoError(t, err)
	require.Equal(t, "data: {\"type\":\"read\",\"data\":{\"chat_id\":5,\"user_id\":2,\"last_message_id\":10}}\n\n", string(record))
}

func TestServeUser_SendsConnectedThenEvents(t *testing.T) {
	b := bus.New(zap.NewNop().Sugar(), metrics.NewForTesting(), 16)
	s := NewStreamer(b, zap.NewNop().Sugar(), metrics.NewForTesting(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/chats/stream", nil).WithContext(ctx)
	rec := newSyncRecorder()

	done := make(chan error, 1)
	go func() {
		done <- s.ServeUser(rec, req, 2)
	}()

	// wait until the subscription is registered
	require.Eventually(t, func() bool { return b.ListenerCount() == 1 }, time.Second, time.Millisecond)

	b.Publish([]int64{2}, domain.NewReadEvent(5, 1, 10))

	// let the stream drain its channel, then disconnect
	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body(), `"type":"read"`)
	}, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, <-done)

	body := rec.Body()
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(body, "data: {\"type\":\"connected\"}\n\n"))
	require.Contains(t, body, `"last_message_id":10`)

	// cleanup ran: the registration is gone
	require.Equal(t, 0, b.ListenerCount())
}

func TestServeUser_SendsPings(t *testing.T) {
	b := bus.New(zap.NewNop().Sugar(), metrics.NewForTesting(), 16)
	s := NewStreamer(b, zap.NewNop().Sugar(), metrics.NewForTesting(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/chats/stream", nil).WithContext(ctx)
	rec := newSyncRecorder()

	done := make(chan error, 1)
	go func() {
		done <- s.ServeUser(rec, req, 1)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body(), `"type":"ping"`)
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Contains(t, rec.Body(), `"t":`)
}

func TestServeUser_RequiresFlusher(t *testing.T) {
	b := bus.New(zap.NewNop().Sugar(), metrics.NewForTesting(), 16)
	s := NewStreamer(b, zap.NewNop().Sugar(), metrics.NewForTesting(), time.Hour)

	req := httptest.NewRequest("GET", "/api/chats/stream", nil)
	err := s.ServeUser(plainWriter{httptest.NewRecorder()}, req, 1)
	require.ErrorIs(t, err, ErrStreamingUnsupported)
}

// plainWriter hides the recorder's Flush method.
type plainWriter struct {
	http.ResponseWriter
}
