package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/core/service"
)

const maxChatFrameBytes = 64 << 10

type chatInbound struct {
	Description string `json:"description"`
	SenderID    int64  `json:"sender_id"`
	Image       string `json:"image"`
}

type chatHistoryFrame struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages"`
}

type chatMessageFrame struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

type chatError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatErrorFrame struct {
	Type  string    `json:"type"`
	Error chatError `json:"error"`
}

func newChatErrorFrame(code, message string) chatErrorFrame {
	return chatErrorFrame{Type: "error", Error: chatError{Code: code, Message: message}}
}

// wsPeer serializes frames written by the reader and the writer goroutine.
type wsPeer struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (p *wsPeer) send(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(p.conn, frame)
}

// Chat upgrades to a websocket bound to one conversation. Unknown
// conversations are rejected before the upgrade.
func (h *HTTPHandler) Chat(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}
	if _, err := h.conversations.Get(r.Context(), conversationID); err != nil {
		h.writeError(w, r, err)
		return
	}

	srv := websocket.Server{
		Handler: func(conn *websocket.Conn) {
			h.serveChat(conn, conversationID)
		},
	}
	srv.ServeHTTP(w, r)
}

func (h *HTTPHandler) serveChat(conn *websocket.Conn, conversationID int64) {
	conn.MaxPayloadBytes = maxChatFrameBytes
	ctx := conn.Request().Context()
	logger := h.logger.With().Int64("conversation_id", conversationID).Logger()
	peer := &wsPeer{conn: conn, writeTimeout: h.chatWriteTimeout}

	session, err := h.chat.Join(ctx, conversationID)
	if err != nil {
		logger.Error().Err(err).Msg("join chat")
		_ = peer.send(newChatErrorFrame(domain.CodeOf(err), "could not join conversation"))
		conn.Close()
		return
	}

	if err := peer.send(chatHistoryFrame{Type: "history", Messages: nonNil(session.History())}); err != nil {
		session.Close()
		conn.Close()
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-session.Outbound():
				if err := peer.send(chatMessageFrame{Type: "message", Message: msg}); err != nil {
					logger.Debug().Err(err).Msg("chat write failed")
					conn.Close()
					return
				}
			case <-session.Done():
				conn.Close()
				return
			}
		}
	}()

	h.receiveChat(ctx, conn, peer, session)

	session.Close()
	conn.Close()
	<-writerDone
	logger.Debug().Msg("chat connection closed")
}

// receiveChat runs until the peer goes away or the session is dropped.
// Malformed frames are answered with an error frame and reading continues.
func (h *HTTPHandler) receiveChat(ctx context.Context, conn *websocket.Conn, peer *wsPeer, session *service.ChatSession) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.chatReadTimeout)); err != nil {
			return
		}

		var in chatInbound
		if err := websocket.JSON.Receive(conn, &in); err != nil {
			if frame, ok := payloadErrorFrame(err); ok {
				if peer.send(frame) != nil {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !session.Closed() {
				h.logger.Debug().Err(err).Msg("chat read failed")
			}
			return
		}

		_, err := h.chat.Post(ctx, session, service.InboundMessage{
			Body:       in.Description,
			SenderID:   in.SenderID,
			Attachment: in.Image,
		})
		switch {
		case err == nil:
		case errors.Is(err, service.ErrSessionClosed):
			return
		case domain.KindOf(err) != domain.KindInternal:
			if peer.send(newChatErrorFrame(domain.CodeOf(err), err.Error())) != nil {
				return
			}
		default:
			h.logger.Error().Err(err).Int64("conversation_id", session.Conversation().ID).Msg("append chat message")
			if peer.send(newChatErrorFrame("internal", "internal error")) != nil {
				return
			}
		}
	}
}

func payloadErrorFrame(err error) (chatErrorFrame, bool) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, websocket.ErrFrameTooLarge):
		return newChatErrorFrame(domain.CodeOf(domain.ErrMessageTooLong), domain.ErrMessageTooLong.Error()), true
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return newChatErrorFrame(domain.CodeOf(domain.ErrInvalidMessage), domain.ErrInvalidMessage.Error()), true
	}
	return chatErrorFrame{}, false
}
