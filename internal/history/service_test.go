package history

import (
	"context"
	"testing"
)

func TestCommitAndHistory(t *testing.T) {
	svc := New(t.TempDir())
	ctx := context.Background()

	h1, err := svc.CommitStep(ctx, "prj-1", 1, []byte(`{"problem":{"statement":"v1"}}`),
		"Jae", "jae@example.com", "save step 1")
	if err != nil {
		t.Fatalf("first CommitStep: %v", err)
	}
	if h1 == "" {
		t.Fatal("expected a commit hash")
	}

	h2, err := svc.CommitStep(ctx, "prj-1", 1, []byte(`{"problem":{"statement":"v2"}}`),
		"Jae", "jae@example.com", "save step 1")
	if err != nil {
		t.Fatalf("second CommitStep: %v", err)
	}
	if h2 == "" || h2 == h1 {
		t.Fatalf("expected a new commit, got %q after %q", h2, h1)
	}

	commits, err := svc.StepHistory(ctx, "prj-1", 1, 0)
	if err != nil {
		t.Fatalf("StepHistory: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Hash != h2 {
		t.Errorf("newest first: got %s, want %s", commits[0].Hash, h2)
	}

	snapshot, err := svc.StepSnapshot(ctx, "prj-1", 1, h1)
	if err != nil {
		t.Fatalf("StepSnapshot: %v", err)
	}
	if string(snapshot) != `{"problem":{"statement":"v1"}}` {
		t.Errorf("snapshot at first commit = %s", snapshot)
	}
}

func TestUnchangedSnapshotSkipsCommit(t *testing.T) {
	svc := New(t.TempDir())
	ctx := context.Background()

	body := []byte(`{"goal":{"objective":"same"}}`)
	if _, err := svc.CommitStep(ctx, "prj-1", 2, body, "Jae", "jae@example.com", "save"); err != nil {
		t.Fatalf("CommitStep: %v", err)
	}
	hash, err := svc.CommitStep(ctx, "prj-1", 2, body, "Jae", "jae@example.com", "save")
	if err != nil {
		t.Fatalf("repeat CommitStep: %v", err)
	}
	if hash != "" {
		t.Errorf("identical snapshot committed again: %s", hash)
	}
}

func TestHistoryIsolatedPerStep(t *testing.T) {
	svc := New(t.TempDir())
	ctx := context.Background()

	if _, err := svc.CommitStep(ctx, "prj-1", 1, []byte(`{"a":1}`), "Jae", "jae@example.com", "s1"); err != nil {
		t.Fatalf("CommitStep: %v", err)
	}
	if _, err := svc.CommitStep(ctx, "prj-1", 2, []byte(`{"b":2}`), "Jae", "jae@example.com", "s2"); err != nil {
		t.Fatalf("CommitStep: %v", err)
	}

	commits, err := svc.StepHistory(ctx, "prj-1", 1, 0)
	if err != nil {
		t.Fatalf("StepHistory: %v", err)
	}
	if len(commits) != 1 {
		t.Errorf("step 1 history has %d commits, want 1", len(commits))
	}
}

func TestHistoryForUnknownProject(t *testing.T) {
	svc := New(t.TempDir())
	commits, err := svc.StepHistory(context.Background(), "prj-missing", 1, 0)
	if err != nil {
		t.Fatalf("StepHistory: %v", err)
	}
	if commits != nil {
		t.Errorf("expected no history, got %v", commits)
	}
}
