package coach

import (
	"context"
	"testing"
)

func newQueuedJob(id string, userID uint64, sessionID string, key *string) *FeedbackJob {
	return &FeedbackJob{
		ID:             id,
		UserID:         userID,
		SessionID:      sessionID,
		IdempotencyKey: key,
		Status:         JobQueued,
	}
}

func TestCreateJobOrGetExisting_KeyScopedPerUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	key := "shared-key"

	j1 := newQueuedJob("01JOBUSERONE0000000000000A", 101, "01JOBSESSIONA000000000000A", &key)
	created1, isNew1, err := repo.CreateJobOrGetExisting(context.Background(), j1)
	if err != nil {
		t.Fatalf("first user create: %v", err)
	}
	if !isNew1 {
		t.Fatalf("expected first user's job to be new")
	}

	// A different user reusing the same key must get their own job, not a
	// constraint error and not the first user's job.
	j2 := newQueuedJob("01JOBUSERTWO0000000000000A", 102, "01JOBSESSIONB000000000000A", &key)
	created2, isNew2, err := repo.CreateJobOrGetExisting(context.Background(), j2)
	if err != nil {
		t.Fatalf("second user create: %v", err)
	}
	if !isNew2 {
		t.Fatalf("expected second user's job to be new")
	}
	if created1.ID == created2.ID {
		t.Fatalf("expected distinct jobs per user, both got id %s", created1.ID)
	}

	// The same user repeating the key gets the existing job back.
	j3 := newQueuedJob("01JOBUSERONEB000000000000A", 101, "01JOBSESSIONA000000000000A", &key)
	existing, isNew3, err := repo.CreateJobOrGetExisting(context.Background(), j3)
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if isNew3 {
		t.Fatalf("expected repeat with same key to return the existing job")
	}
	if existing.ID != created1.ID {
		t.Fatalf("expected job %s, got %s", created1.ID, existing.ID)
	}
}

func TestCreateJobOrGetExisting_NoKeyAlwaysCreates(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	for _, id := range []string{"01JOBNOKEYA00000000000000A", "01JOBNOKEYB00000000000000A"} {
		_, isNew, err := repo.CreateJobOrGetExisting(context.Background(),
			newQueuedJob(id, 103, "01JOBSESSIONC000000000000A", nil))
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if !isNew {
			t.Fatalf("expected keyless job %s to be new", id)
		}
	}
}
