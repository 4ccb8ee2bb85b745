package sdk

import (
	"context"
	"log"
	"time"
)

// Store wires the client, the live stream, the projector and the tracker
// into one client-side state holder. It owns the fallback decision: the
// polling loop runs exactly when no live stream is open.
type Store struct {
	userID    int64
	client    *Client
	stream    *Stream
	projector *Projector
	tracker   *Tracker
	poller    *Poller

	unsubscribe func()
}

func NewStore(client *Client, stream *Stream, userID int64, pollInterval time.Duration) *Store {
	s := &Store{
		userID:    userID,
		client:    client,
		stream:    stream,
		projector: NewProjector(userID),
		tracker:   NewTracker(),
	}
	s.poller = NewPoller(pollInterval, s.refresh)
	return s
}

func (s *Store) Projector() *Projector { return s.projector }
func (s *Store) Tracker() *Tracker     { return s.tracker }
func (s *Store) Polling() bool         { return s.poller.Running() }

// Connect loads the initial state and opens the live stream. When the
// stream cannot be opened or later drops, the polling fallback takes over;
// a later successful Connect stops it again.
func (s *Store) Connect(ctx context.Context) error {
	s.refresh(ctx)

	// stop before subscribing: a drop arriving mid-call then re-engages
	// the fallback instead of racing against this stop
	s.StopPolling()

	off, err := s.stream.Subscribe(ctx, s.handleEvent, func(streamErr error) {
		if streamErr != nil {
			log.Printf("event stream dropped, polling fallback engaged: %v", streamErr)
			s.StartPolling()
		}
	})
	if err != nil {
		s.StartPolling()
		return err
	}

	s.unsubscribe = off
	return nil
}

// Close detaches the live stream and stops the fallback loop.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.StopPolling()
}

// StartPolling and StopPolling are the explicit fallback toggle; Connect
// and the stream close callback drive them in normal operation.
func (s *Store) StartPolling() { s.poller.Start() }
func (s *Store) StopPolling()  { s.poller.Stop() }

// OpenChat loads a chat's recent messages, marks it read and keeps its
// stream events from bumping the badge.
func (s *Store) OpenChat(ctx context.Context, chatID int64) error {
	messages, err := s.client.Messages(ctx, chatID, 0)
	if err != nil {
		return err
	}
	s.projector.SetMessages(chatID, messages)
	s.projector.OpenChat(chatID)

	if len(messages) > 0 {
		newest := messages[len(messages)-1].ID
		if err := s.client.MarkRead(ctx, chatID, newest); err != nil {
			return err
		}
	}
	s.projector.ResetUnread(chatID)
	return nil
}

func (s *Store) CloseChat() {
	s.projector.OpenChat(0)
}

func (s *Store) handleEvent(ev Event) {
	switch ev.Type {
	case EventConnected, EventPing:
		// keep-alives carry no state

	case EventMessage:
		if ev.Message == nil {
			return
		}
		if known := s.projector.ApplyMessage(*ev.Message); !known {
			// brand-new conversation: patching is not possible, refetch
			s.refresh(context.Background())
			return
		}
		if s.projector.OpenChatID() == ev.Message.ChatID && ev.Message.Message.SenderID != s.userID {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = s.client.MarkRead(ctx, ev.Message.ChatID, ev.Message.Message.ID)
			cancel()
		}

	case EventRead:
		if ev.Read == nil {
			return
		}
		loaded := s.projector.Messages(ev.Read.ChatID)
		s.tracker.ApplyRead(ev.Read.ChatID, ev.Read.UserID, ev.Read.LastMessageID, loaded)
		if ev.Read.UserID == s.userID {
			s.projector.ResetUnread(ev.Read.ChatID)
		}

	case EventConversation:
		if ev.Conversation == nil {
			return
		}
		if known := s.projector.ApplyConversation(*ev.Conversation); !known {
			s.refresh(context.Background())
			return
		}
		// member counts feed unread denominators, refetch them
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if members, err := s.client.Members(ctx, ev.Conversation.ChatID); err == nil {
			s.projector.SetMemberCount(ev.Conversation.ChatID, int64(len(members)))
		}
		cancel()
	}
}

// refresh is the polling-mode and resync path: the conversation list always,
// plus the open chat's messages.
func (s *Store) refresh(ctx context.Context) {
	if chats, err := s.client.Chats(ctx); err == nil {
		s.projector.SetConversations(chats)
	}

	if open := s.projector.OpenChatID(); open != 0 {
		if messages, err := s.client.Messages(ctx, open, 0); err == nil {
			s.projector.SetMessages(open, messages)
		}
	}
}
