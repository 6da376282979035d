package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"gorm.io/gorm"
)

type recordingProvider struct {
	last     []ai.Message
	lastOpts ai.Options
	calls    int
	reply    string
	err      error
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	_ = ctx
	p.calls++
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	p.lastOpts = opts
	if p.err != nil {
		return "", p.err
	}
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Scenario{}, &Session{}, &Message{}, &Feedback{}, &FeedbackJob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedScenarioAndSession(t *testing.T, db *gorm.DB, sessionID string, userID uint64) *Scenario {
	t.Helper()
	sc := &Scenario{
		Slug:      "test-" + sessionID,
		Title:     "Job Interview",
		Objective: "Answer clearly",
		Persona:   "A thorough hiring manager",
	}
	if err := db.Create(sc).Error; err != nil {
		t.Fatalf("create scenario: %v", err)
	}
	sess := &Session{
		SessionID:  sessionID,
		UserID:     userID,
		ScenarioID: sc.ID,
		Status:     SessionActive,
		StartedAt:  time.Now(),
	}
	if err := db.Create(sess).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sc
}

func TestReply_InitialTurnWritesNothing(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{reply: "Hi, I'm Dana, thanks for coming in."}
	svc := NewConversationService(repo, prov, nil)

	seedScenarioAndSession(t, db, "01CONVINITIAL000000000000A", 1)

	reply, err := svc.Reply(context.Background(), 1, "01CONVINITIAL000000000000A", "", true)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply == "" {
		t.Fatalf("expected non-empty reply")
	}

	// system prompt first, opening instruction last
	if len(prov.last) != 2 {
		t.Fatalf("expected 2 provider messages, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" || !strings.Contains(prov.last[0].Content, "hiring manager") {
		t.Fatalf("unexpected system message: %+v", prov.last[0])
	}
	if prov.last[1].Content != OpeningInstruction {
		t.Fatalf("expected opening instruction, got %q", prov.last[1].Content)
	}

	// the orchestrator must not persist any message itself
	var count int64
	if err := db.Model(&Message{}).Where("session_id = ?", "01CONVINITIAL000000000000A").Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 messages written, got %d", count)
	}
}

func TestReply_AppendsHistoryThenUserMessage(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{}
	svc := NewConversationService(repo, prov, nil)

	seedScenarioAndSession(t, db, "01CONVHISTORY000000000000A", 2)

	history := []Message{
		{SessionID: "01CONVHISTORY000000000000A", UserID: 2, Role: "assistant", Content: "Welcome, take a seat."},
		{SessionID: "01CONVHISTORY000000000000A", UserID: 2, Role: "user", Content: "Thanks, happy to be here."},
	}
	for i := range history {
		if err := repo.InsertMessage(context.Background(), &history[i]); err != nil {
			t.Fatalf("seed msg %d: %v", i, err)
		}
	}

	_, err := svc.Reply(context.Background(), 2, "01CONVHISTORY000000000000A", "Tell me about the role.", false)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}

	if len(prov.last) != 4 {
		t.Fatalf("expected system + 2 history + user = 4 messages, got %d", len(prov.last))
	}
	if prov.last[1].Content != "Welcome, take a seat." || prov.last[2].Content != "Thanks, happy to be here." {
		t.Fatalf("history out of order: %+v", prov.last[1:3])
	}
	last := prov.last[len(prov.last)-1]
	if last.Role != "user" || last.Content != "Tell me about the role." {
		t.Fatalf("expected new user message last, got %+v", last)
	}
	if prov.lastOpts.MaxTokens != replyMaxTokens || prov.lastOpts.Temperature != replyTemperature {
		t.Fatalf("unexpected sampling options: %+v", prov.lastOpts)
	}
}

func TestReply_SessionNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{}
	svc := NewConversationService(repo, prov, nil)

	_, err := svc.Reply(context.Background(), 1, "01NOSUCHSESSION0000000000A", "hi", false)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called on lookup failure")
	}
}

func TestReply_HidesOtherUsersSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewConversationService(repo, &recordingProvider{}, nil)

	seedScenarioAndSession(t, db, "01CONVFOREIGN000000000000A", 7)

	_, err := svc.Reply(context.Background(), 8, "01CONVFOREIGN000000000000A", "hi", false)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
}

func TestReply_UpstreamErrorTagged(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{err: errors.New("openrouter: status 429")}
	svc := NewConversationService(repo, prov, nil)

	seedScenarioAndSession(t, db, "01CONVUPSTREAM00000000000A", 3)

	_, err := svc.Reply(context.Background(), 3, "01CONVUPSTREAM00000000000A", "hi", false)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected upstream detail in error, got %v", err)
	}
}
