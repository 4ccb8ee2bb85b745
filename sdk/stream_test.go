package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsume_DecodesRecordsAndDiscardsGarbage(t *testing.T) {
	feed := strings.Join([]string{
		`data: {"type":"connected"}`,
		``,
		`data: {"type":"ping","t":1756600000000}`,
		``,
		`data: {not json`,
		``,
		`: comment line`,
		`data: {"type":"message","data":{"chat_id":5,"message":{"id":10,"chat_id":5,"sender_id":1,"content":"hi"}}}`,
		``,
		`data: {"type":"alien"}`,
		``,
	}, "\n")

	var events []Event
	err := consume(strings.NewReader(feed), func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	require.Equal(t, EventConnected, events[0].Type)
	require.Equal(t, EventPing, events[1].Type)
	require.EqualValues(t, 1756600000000, events[1].T)
	require.Equal(t, EventMessage, events[2].Type)
	require.NotNil(t, events[2].Message)
	require.EqualValues(t, 5, events[2].Message.ChatID)
	require.EqualValues(t, 10, events[2].Message.Message.ID)
	require.Equal(t, "hi", events[2].Message.Message.Text())
}

func TestSubscribe_DeliversUntilUnsubscribed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "41", r.Header.Get(HeaderUserID))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"type\":\"connected\"}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: {\"type\":\"read\",\"data\":{\"chat_id\":5,\"user_id\":2,\"last_message_id\":10}}\n\n"))
		flusher.Flush()

		<-r.Context().Done()
	}))
	defer srv.Close()

	events := make(chan Event, 8)
	closed := make(chan error, 1)

	stream := NewStream(srv.URL, 41, nil)
	off, err := stream.Subscribe(context.Background(), func(ev Event) {
		events <- ev
	}, func(err error) {
		closed <- err
	})
	require.NoError(t, err)

	require.Equal(t, EventConnected, waitEvent(t, events).Type)
	read := waitEvent(t, events)
	require.Equal(t, EventRead, read.Type)
	require.EqualValues(t, 10, read.Read.LastMessageID)

	off()
	off() // second call is a no-op

	select {
	case err := <-closed:
		require.NoError(t, err, "deliberate unsubscribe is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("stream never closed")
	}
}

func TestSubscribe_ServerDropReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"type\":\"connected\"}\n\n"))
	}))
	defer srv.Close()

	closed := make(chan error, 1)

	stream := NewStream(srv.URL, 41, nil)
	_, err := stream.Subscribe(context.Background(), func(Event) {}, func(err error) {
		closed <- err
	})
	require.NoError(t, err)

	select {
	case err := <-closed:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close callback never fired")
	}
}

func TestSubscribe_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	stream := NewStream(srv.URL, 41, nil)
	_, err := stream.Subscribe(context.Background(), func(Event) {}, nil)
	require.Error(t, err)
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
