package domain

import "time"

type Conversation struct {
	ID           int64     `json:"id"`
	ParticipantA int64     `json:"participant_a"`
	ParticipantB int64     `json:"participant_b"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizePair orders a participant pair so the smaller id comes first.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Body           string    `json:"description"`
	Attachment     string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
