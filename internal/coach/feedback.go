package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/common"
)

const (
	evalTemperature = 0.3
	evalMaxTokens   = 400

	// one user turn and one assistant turn at minimum
	minTranscriptLen = 2
)

// FeedbackService evaluates a finished conversation, persists the verdict and
// marks the session completed.
type FeedbackService struct {
	repo     *Repo
	provider ai.Provider
	cache    ScenarioCache
}

func NewFeedbackService(repo *Repo, provider ai.Provider, cache ScenarioCache) *FeedbackService {
	return &FeedbackService{repo: repo, provider: provider, cache: cache}
}

// Generate scores the session transcript and returns the persisted record.
func (s *FeedbackService) Generate(ctx context.Context, userID uint64, sessionID string) (*Feedback, error) {
	sess, err := loadOwnedSession(ctx, s.repo, userID, sessionID)
	if err != nil {
		return nil, err
	}

	scenario, err := loadScenario(ctx, s.repo, s.cache, sess.ScenarioID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListMessagesAsc(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) < minTranscriptLen {
		return nil, ErrNotEnoughConversation
	}

	prompt := EvaluationPrompt(scenario, RenderTranscript(history))
	raw, err := s.provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: "You are a strict evaluator that answers only with JSON."},
		{Role: "user", Content: prompt},
	}, ai.Options{Temperature: evalTemperature, MaxTokens: evalMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	summary, scores, recommendations, err := decodeFeedbackPayload(raw)
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	fb := &Feedback{
		ID:              id,
		SessionID:       sessionID,
		Summary:         summary,
		Scores:          scores,
		Recommendations: recommendations,
	}
	if err := s.repo.CreateFeedbackCompletingSession(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

type feedbackPayload struct {
	Summary         *string  `json:"summary"`
	Clarity         *float64 `json:"clarity"`
	Empathy         *float64 `json:"empathy"`
	Assertiveness   *float64 `json:"assertiveness"`
	Recommendations *string  `json:"recommendations"`
}

// decodeFeedbackPayload parses the raw model text into a validated score set.
// Models sometimes wrap the JSON object in commentary, so the outermost object
// is extracted before decoding. Any missing field or out-of-range score is a
// typed failure, never a panic.
func decodeFeedbackPayload(raw string) (string, Scores, string, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return "", Scores{}, "", fmt.Errorf("%w: no JSON object in response", ErrMalformedModelOutput)
	}

	var p feedbackPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return "", Scores{}, "", fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	if p.Summary == nil || strings.TrimSpace(*p.Summary) == "" {
		return "", Scores{}, "", fmt.Errorf("%w: missing summary", ErrMalformedModelOutput)
	}
	if p.Recommendations == nil || strings.TrimSpace(*p.Recommendations) == "" {
		return "", Scores{}, "", fmt.Errorf("%w: missing recommendations", ErrMalformedModelOutput)
	}

	scores := Scores{}
	for _, f := range []struct {
		name string
		val  *float64
		dst  *float64
	}{
		{"clarity", p.Clarity, &scores.Clarity},
		{"empathy", p.Empathy, &scores.Empathy},
		{"assertiveness", p.Assertiveness, &scores.Assertiveness},
	} {
		if f.val == nil {
			return "", Scores{}, "", fmt.Errorf("%w: missing score %s", ErrMalformedModelOutput, f.name)
		}
		if *f.val < 0 || *f.val > 5 {
			return "", Scores{}, "", fmt.Errorf("%w: score %s out of range: %v", ErrMalformedModelOutput, f.name, *f.val)
		}
		*f.dst = *f.val
	}

	return *p.Summary, scores, *p.Recommendations, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s.
// Braces inside string literals are ignored.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
