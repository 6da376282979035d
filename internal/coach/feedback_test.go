package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"
)

const wellFormedVerdict = "{\"summary\":\"ok\",\"clarity\":4,\"empathy\":3,\"assertiveness\":5,\"recommendations\":\"• a\\n• b\\n• c\"}"

func seedConversation(t *testing.T, db *gorm.DB, repo *Repo, sessionID string, userID uint64) {
	t.Helper()
	seedScenarioAndSession(t, db, sessionID, userID)
	msgs := []Message{
		{SessionID: sessionID, UserID: userID, Role: "user", Content: "Hello"},
		{SessionID: sessionID, UserID: userID, Role: "assistant", Content: "Hi there"},
	}
	for i := range msgs {
		if err := repo.InsertMessage(context.Background(), &msgs[i]); err != nil {
			t.Fatalf("seed msg %d: %v", i, err)
		}
	}
}

func TestGenerate_RejectsShortConversation(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{reply: wellFormedVerdict}
	svc := NewFeedbackService(repo, prov, nil)

	seedScenarioAndSession(t, db, "01FBSHORT0000000000000000A", 1)
	if err := repo.InsertMessage(context.Background(), &Message{
		SessionID: "01FBSHORT0000000000000000A", UserID: 1, Role: "user", Content: "Hello",
	}); err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	_, err := svc.Generate(context.Background(), 1, "01FBSHORT0000000000000000A")
	if !errors.Is(err, ErrNotEnoughConversation) {
		t.Fatalf("expected ErrNotEnoughConversation, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called for a short conversation")
	}
}

func TestGenerate_PersistsScoresAndCompletesSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{reply: wellFormedVerdict}
	svc := NewFeedbackService(repo, prov, nil)

	seedConversation(t, db, repo, "01FBROUNDTRIP000000000000A", 1)

	fb, err := svc.Generate(context.Background(), 1, "01FBROUNDTRIP000000000000A")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := Scores{Clarity: 4, Empathy: 3, Assertiveness: 5}
	if fb.Scores != want {
		t.Fatalf("scores = %+v, want %+v", fb.Scores, want)
	}
	if fb.Summary != "ok" {
		t.Fatalf("summary = %q", fb.Summary)
	}
	if fb.ID == "" {
		t.Fatalf("expected persisted id")
	}

	// the evaluation prompt carries the rendered transcript
	prompt := prov.last[len(prov.last)-1].Content
	if !strings.Contains(prompt, "User: Hello") || !strings.Contains(prompt, "Coach: Hi there") {
		t.Fatalf("transcript missing from prompt:\n%s", prompt)
	}

	var rows []Feedback
	if err := db.Where("session_id = ?", "01FBROUNDTRIP000000000000A").Find(&rows).Error; err != nil {
		t.Fatalf("query feedback: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 feedback row, got %d", len(rows))
	}

	sess, err := repo.GetSessionBySessionID(context.Background(), "01FBROUNDTRIP000000000000A")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.Status != SessionCompleted {
		t.Fatalf("session status = %q, want completed", sess.Status)
	}
	if sess.EndedAt == nil {
		t.Fatalf("expected non-nil ended_at")
	}
}

// Calling feedback twice for the same session is not guarded: the second call
// also succeeds and inserts a second row. Documented behavior, not a contract.
func TestGenerate_SecondCallInsertsSecondRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewFeedbackService(repo, &recordingProvider{reply: wellFormedVerdict}, nil)

	seedConversation(t, db, repo, "01FBDUPLICATE000000000000A", 1)

	if _, err := svc.Generate(context.Background(), 1, "01FBDUPLICATE000000000000A"); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if _, err := svc.Generate(context.Background(), 1, "01FBDUPLICATE000000000000A"); err != nil {
		t.Fatalf("second generate: %v", err)
	}

	var count int64
	if err := db.Model(&Feedback{}).Where("session_id = ?", "01FBDUPLICATE000000000000A").Count(&count).Error; err != nil {
		t.Fatalf("count feedback: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 feedback rows, got %d", count)
	}
}

func TestGenerate_TolerantOfSurroundingCommentary(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{reply: "Sure, here is the evaluation:\n" + wellFormedVerdict + "\nHope that helps!"}
	svc := NewFeedbackService(repo, prov, nil)

	seedConversation(t, db, repo, "01FBCOMMENTARY0000000000A0", 1)

	fb, err := svc.Generate(context.Background(), 1, "01FBCOMMENTARY0000000000A0")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fb.Scores.Clarity != 4 {
		t.Fatalf("clarity = %v, want 4", fb.Scores.Clarity)
	}
}

func TestGenerate_MalformedOutputIsTypedError(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewFeedbackService(repo, &recordingProvider{reply: "I cannot evaluate this conversation."}, nil)

	seedConversation(t, db, repo, "01FBMALFORMED000000000000A", 1)

	_, err := svc.Generate(context.Background(), 1, "01FBMALFORMED000000000000A")
	if !errors.Is(err, ErrMalformedModelOutput) {
		t.Fatalf("expected ErrMalformedModelOutput, got %v", err)
	}

	// nothing persisted, session untouched
	var count int64
	if err := db.Model(&Feedback{}).Where("session_id = ?", "01FBMALFORMED000000000000A").Count(&count).Error; err != nil {
		t.Fatalf("count feedback: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no feedback rows, got %d", count)
	}
	sess, err := repo.GetSessionBySessionID(context.Background(), "01FBMALFORMED000000000000A")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.Status != SessionActive {
		t.Fatalf("session status = %q, want active", sess.Status)
	}
}

func TestGenerate_SessionNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{reply: wellFormedVerdict}
	svc := NewFeedbackService(repo, prov, nil)

	_, err := svc.Generate(context.Background(), 1, "01FBNOSESSION000000000000A")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called on lookup failure")
	}
}

func TestDecodeFeedbackPayload(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"well formed", wellFormedVerdict, false},
		{"missing score", "{\"summary\":\"ok\",\"clarity\":4,\"assertiveness\":5,\"recommendations\":\"x\"}", true},
		{"score above range", "{\"summary\":\"ok\",\"clarity\":9,\"empathy\":3,\"assertiveness\":5,\"recommendations\":\"x\"}", true},
		{"score below range", "{\"summary\":\"ok\",\"clarity\":-1,\"empathy\":3,\"assertiveness\":5,\"recommendations\":\"x\"}", true},
		{"empty summary", "{\"summary\":\"\",\"clarity\":4,\"empathy\":3,\"assertiveness\":5,\"recommendations\":\"x\"}", true},
		{"no json at all", "plain refusal text", true},
		{"braces inside strings", "{\"summary\":\"use {braces} wisely\",\"clarity\":1,\"empathy\":2,\"assertiveness\":3,\"recommendations\":\"x\"}", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := decodeFeedbackPayload(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedModelOutput) {
					t.Fatalf("expected ErrMalformedModelOutput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := extractJSONObject("noise {\"a\":\"}\"} tail")
	if !ok || obj != "{\"a\":\"}\"}" {
		t.Fatalf("got %q ok=%v", obj, ok)
	}
	if _, ok := extractJSONObject("{unbalanced"); ok {
		t.Fatalf("expected failure on unbalanced braces")
	}
	if _, ok := extractJSONObject("no object here"); ok {
		t.Fatalf("expected failure when no object present")
	}
}
