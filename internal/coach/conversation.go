package coach

import (
	"context"
	"errors"
	"fmt"

	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"gorm.io/gorm"
)

// ScenarioCache is an optional read-through cache in front of the scenarios
// table. Misses and cache failures fall back to the database.
type ScenarioCache interface {
	GetScenario(ctx context.Context, id uint64) (*Scenario, bool)
	SetScenario(ctx context.Context, sc *Scenario)
}

const (
	replyTemperature = 0.8
	replyMaxTokens   = 220
)

// ConversationService produces in-character replies for an active session.
// It never writes message rows; persisting both turns is the caller's job.
type ConversationService struct {
	repo     *Repo
	provider ai.Provider
	cache    ScenarioCache
}

func NewConversationService(repo *Repo, provider ai.Provider, cache ScenarioCache) *ConversationService {
	return &ConversationService{repo: repo, provider: provider, cache: cache}
}

func loadScenario(ctx context.Context, repo *Repo, cache ScenarioCache, id uint64) (*Scenario, error) {
	if cache != nil {
		if sc, ok := cache.GetScenario(ctx, id); ok {
			return sc, nil
		}
	}
	sc, err := repo.GetScenario(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScenarioNotFound
		}
		return nil, err
	}
	if cache != nil {
		cache.SetScenario(ctx, sc)
	}
	return sc, nil
}

func loadOwnedSession(ctx context.Context, repo *Repo, userID uint64, sessionID string) (*Session, error) {
	sess, err := repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != userID {
		// hide existence
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Reply assembles the prompt from scenario metadata and prior turns and asks
// the model for the next in-character reply.
func (s *ConversationService) Reply(ctx context.Context, userID uint64, sessionID, userMessage string, initial bool) (string, error) {
	sess, err := loadOwnedSession(ctx, s.repo, userID, sessionID)
	if err != nil {
		return "", err
	}

	scenario, err := loadScenario(ctx, s.repo, s.cache, sess.ScenarioID)
	if err != nil {
		return "", err
	}

	history, err := s.repo.ListMessagesAsc(ctx, sessionID)
	if err != nil {
		return "", err
	}

	providerMsgs := make([]ai.Message, 0, len(history)+2)
	providerMsgs = append(providerMsgs, ai.Message{Role: "system", Content: SystemPrompt(scenario)})
	for _, m := range history {
		providerMsgs = append(providerMsgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	if initial {
		providerMsgs = append(providerMsgs, ai.Message{Role: "user", Content: OpeningInstruction})
	} else {
		providerMsgs = append(providerMsgs, ai.Message{Role: "user", Content: userMessage})
	}

	reply, err := s.provider.Chat(ctx, providerMsgs, ai.Options{
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return reply, nil
}
