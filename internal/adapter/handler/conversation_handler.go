package handler

import (
	"net/http"
	"strconv"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type ConversationResponse struct {
	ConversationID int64 `json:"conversation_id"`
	ParticipantA   int64 `json:"participant_a"`
	ParticipantB   int64 `json:"participant_b"`
}

// LookupConversation resolves the canonical conversation for a sender and
// receiver, creating it on first contact.
func (h *HTTPHandler) LookupConversation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sender, err := strconv.ParseInt(q.Get("sender_id"), 10, 64)
	if err != nil {
		h.writeError(w, r, domain.ErrInvalidParticipants)
		return
	}
	receiver, err := strconv.ParseInt(q.Get("receiver_id"), 10, 64)
	if err != nil {
		h.writeError(w, r, domain.ErrInvalidParticipants)
		return
	}

	conv, err := h.conversations.GetOrCreate(r.Context(), sender, receiver)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "conversation found", ConversationResponse{
		ConversationID: conv.ID,
		ParticipantA:   conv.ParticipantA,
		ParticipantB:   conv.ParticipantB,
	})
}
