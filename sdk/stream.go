package sdk

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Stream consumes the live event feed of one user. It is a one-shot
// consumer per connection: when the transport drops the handler returns and
// the owner decides whether to reconnect or fall back to polling.
type Stream struct {
	baseURL    string
	userID     int64
	httpClient *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewStream(baseURL string, userID int64, httpClient *http.Client) *Stream {
	if httpClient == nil {
		// no timeout: the connection stays open for its whole lifetime
		httpClient = &http.Client{}
	}
	return &Stream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: httpClient,
	}
}

// Subscribe opens the stream and delivers every decoded event to onEvent on
// a background goroutine. onClose fires once when the stream ends, with a
// nil error on deliberate unsubscribe. The returned function detaches the
// subscription and is safe to call more than once.
func (s *Stream) Subscribe(ctx context.Context, onEvent func(Event), onClose func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/chats/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set(HeaderUserID, strconv.FormatInt(s.userID, 10))
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		err := consume(resp.Body, onEvent)
		resp.Body.Close()
		if ctx.Err() != nil {
			err = nil
		} else if err == nil {
			// the server never ends a healthy stream; EOF is a drop
			err = io.ErrUnexpectedEOF
		}
		if onClose != nil {
			onClose(err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}, nil
}

// consume reads SSE records until the body ends. Unparseable payloads are
// discarded without killing the stream.
func consume(body io.Reader, onEvent func(Event)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		onEvent(ev)
	}
	return scanner.Err()
}
