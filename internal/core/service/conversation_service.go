package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

const maxConversationAttempts = 3

type ConversationService struct {
	conversations port.ConversationRepository
	logger        zerolog.Logger
}

func NewConversationService(conversations port.ConversationRepository, logger zerolog.Logger) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
	}
}

// GetOrCreate returns the single conversation for the unordered pair {a, b},
// creating it on first contact. A concurrent creator winning the insert is
// resolved by reading its row.
func (s *ConversationService) GetOrCreate(ctx context.Context, a, b int64) (domain.Conversation, error) {
	if a <= 0 || b <= 0 || a == b {
		return domain.Conversation{}, domain.ErrInvalidParticipants
	}
	low, high := domain.NormalizePair(a, b)

	for attempt := 1; attempt <= maxConversationAttempts; attempt++ {
		existing, err := s.conversations.FindConversation(ctx, low, high)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
		}
		if existing != nil {
			return *existing, nil
		}

		conv, err := s.conversations.InsertConversation(ctx, low, high)
		if err == nil {
			s.logger.Info().
				Int64("conversation_id", conv.ID).
				Int64("participant_a", low).
				Int64("participant_b", high).
				Msg("conversation created")
			return conv, nil
		}
		if !errors.Is(err, domain.ErrConversationExists) {
			return domain.Conversation{}, fmt.Errorf("insert conversation: %w", err)
		}
		s.logger.Debug().Int("attempt", attempt).Int64("participant_a", low).Int64("participant_b", high).Msg("conversation insert lost race")
	}

	return domain.Conversation{}, fmt.Errorf("resolve conversation after %d attempts: %w", maxConversationAttempts, domain.ErrConversationExists)
}

func (s *ConversationService) Get(ctx context.Context, conversationID int64) (domain.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return *conv, nil
}
