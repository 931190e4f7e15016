package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

const (
	DefaultHistoryLimit = 10
	DefaultQueueSize    = 64
	MaxMessageRunes     = 2000
	MaxAttachmentRunes  = 512
)

var ErrSessionClosed = errors.New("chat session closed")

type ChatHubConfig struct {
	HistoryLimit int
	QueueSize    int
}

type InboundMessage struct {
	Body       string
	SenderID   int64
	Attachment string
}

// ChatHub tracks the live sessions of every conversation. A conversation is
// Active while it has at least one session and is dropped from the hub when
// its last session closes.
type ChatHub struct {
	conversations port.ConversationRepository
	messages      port.MessageRepository
	metrics       port.ChatMetrics
	logger        zerolog.Logger
	historyLimit  int
	queueSize     int
	now           func() time.Time

	mu    sync.Mutex
	rooms map[int64]*chatRoom
}

type chatRoom struct {
	mu           sync.Mutex
	conversation domain.Conversation
	sessions     map[*ChatSession]struct{}
	lastAppended time.Time
}

// ChatSession is one open connection on a conversation. Messages appended to
// the conversation arrive on Outbound in append order.
type ChatSession struct {
	hub       *ChatHub
	room      *chatRoom
	history   []domain.Message
	outbound  chan domain.Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewChatHub(conversations port.ConversationRepository, messages port.MessageRepository, metrics port.ChatMetrics, cfg ChatHubConfig, logger zerolog.Logger) *ChatHub {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if metrics == nil {
		metrics = noopChatMetrics{}
	}
	return &ChatHub{
		conversations: conversations,
		messages:      messages,
		metrics:       metrics,
		logger:        logger.With().Str("component", "chat_hub").Logger(),
		historyLimit:  cfg.HistoryLimit,
		queueSize:     cfg.QueueSize,
		now:           time.Now,
		rooms:         make(map[int64]*chatRoom),
	}
}

// Join opens a session on the conversation and snapshots its recent history.
// The snapshot and the subscription happen under the room lock so no message
// is missed or delivered twice.
func (h *ChatHub) Join(ctx context.Context, conversationID int64) (*ChatSession, error) {
	conv, err := h.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}

	h.mu.Lock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = &chatRoom{
			conversation: *conv,
			sessions:     make(map[*ChatSession]struct{}),
		}
		h.rooms[conversationID] = room
	}
	room.mu.Lock()
	h.mu.Unlock()

	history, err := h.messages.RecentMessages(ctx, conversationID, h.historyLimit)
	if err != nil {
		room.mu.Unlock()
		h.pruneRoom(conversationID, room)
		return nil, fmt.Errorf("load history: %w", err)
	}

	session := &ChatSession{
		hub:      h,
		room:     room,
		history:  history,
		outbound: make(chan domain.Message, h.queueSize),
		done:     make(chan struct{}),
	}
	room.sessions[session] = struct{}{}
	if n := len(history); n > 0 && history[n-1].CreatedAt.After(room.lastAppended) {
		room.lastAppended = history[n-1].CreatedAt
	}
	active := len(room.sessions)
	room.mu.Unlock()

	h.metrics.SessionOpened()
	h.logger.Debug().Int64("conversation_id", conversationID).Int("sessions", active).Msg("session joined")
	return session, nil
}

// Post validates and persists an inbound message, then queues it for every
// session on the conversation, the sender included. A session whose queue is
// full is closed instead of blocking the conversation.
func (h *ChatHub) Post(ctx context.Context, session *ChatSession, in InboundMessage) (domain.Message, error) {
	if session.Closed() {
		return domain.Message{}, ErrSessionClosed
	}

	body := strings.TrimSpace(in.Body)
	if body == "" || in.SenderID <= 0 {
		return domain.Message{}, domain.ErrInvalidMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageRunes {
		return domain.Message{}, domain.ErrMessageTooLong
	}
	attachment := strings.TrimSpace(in.Attachment)
	if utf8.RuneCountInString(attachment) > MaxAttachmentRunes {
		return domain.Message{}, domain.ErrInvalidMessage
	}

	room := session.room
	if !room.conversation.HasParticipant(in.SenderID) {
		return domain.Message{}, domain.ErrNotParticipant
	}

	room.mu.Lock()
	createdAt := h.now().UTC().Truncate(time.Microsecond)
	if !createdAt.After(room.lastAppended) {
		createdAt = room.lastAppended.Add(time.Microsecond)
	}

	msg, err := h.messages.AppendMessage(ctx, domain.Message{
		ConversationID: room.conversation.ID,
		SenderID:       in.SenderID,
		Body:           body,
		Attachment:     attachment,
		CreatedAt:      createdAt,
	})
	if err != nil {
		room.mu.Unlock()
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	room.lastAppended = msg.CreatedAt

	var overflowed []*ChatSession
	for s := range room.sessions {
		select {
		case s.outbound <- msg:
		default:
			overflowed = append(overflowed, s)
		}
	}
	room.mu.Unlock()

	h.metrics.MessageAppended()
	for _, s := range overflowed {
		h.logger.Warn().Int64("conversation_id", room.conversation.ID).Msg("session queue full, dropping session")
		s.Close()
	}
	return msg, nil
}

// ActiveSessions reports the number of open sessions on a conversation; zero
// means the conversation is Idle.
func (h *ChatHub) ActiveSessions(conversationID int64) int {
	h.mu.Lock()
	room, ok := h.rooms[conversationID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.sessions)
}

func (h *ChatHub) leave(session *ChatSession) {
	room := session.room

	h.mu.Lock()
	defer h.mu.Unlock()

	room.mu.Lock()
	delete(room.sessions, session)
	empty := len(room.sessions) == 0
	room.mu.Unlock()

	if empty && h.rooms[room.conversation.ID] == room {
		delete(h.rooms, room.conversation.ID)
	}
}

func (h *ChatHub) pruneRoom(conversationID int64, room *chatRoom) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room.mu.Lock()
	empty := len(room.sessions) == 0
	room.mu.Unlock()

	if empty && h.rooms[conversationID] == room {
		delete(h.rooms, conversationID)
	}
}

func (s *ChatSession) Conversation() domain.Conversation {
	return s.room.conversation
}

// History is the snapshot of recent messages taken at join, oldest first.
func (s *ChatSession) History() []domain.Message {
	return s.history
}

func (s *ChatSession) Outbound() <-chan domain.Message {
	return s.outbound
}

// Done is closed when the session leaves the conversation.
func (s *ChatSession) Done() <-chan struct{} {
	return s.done
}

func (s *ChatSession) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *ChatSession) Close() {
	s.closeOnce.Do(func() {
		s.hub.leave(s)
		close(s.done)
		s.hub.metrics.SessionClosed()
		s.hub.logger.Debug().Int64("conversation_id", s.room.conversation.ID).Msg("session closed")
	})
}

type noopChatMetrics struct{}

func (noopChatMetrics) SessionOpened()   {}
func (noopChatMetrics) SessionClosed()   {}
func (noopChatMetrics) MessageAppended() {}
