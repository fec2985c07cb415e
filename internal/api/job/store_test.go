// internal/api/job/store_test.go
package job

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/marketbias/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("refresh")
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("expected uuid job ID, got %q", job.ID)
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("refresh")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusComplete
		j.Result = "done"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusComplete {
		t.Errorf("expected complete, got %s", retrieved.Status)
	}
	if !retrieved.Done() {
		t.Error("complete job should be done")
	}
	if retrieved.Result != "done" {
		t.Errorf("expected result, got %v", retrieved.Result)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1 := store.Create("refresh")
	store.Create("refresh")
	store.Create("refresh") // Should evict job1

	_, err := store.Get(job1.ID)
	if err == nil {
		t.Error("expected job1 to be evicted")
	}
	if len(store.List()) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(store.List()))
	}
}

func TestStore_TTL(t *testing.T) {
	store := NewStore(100, time.Minute)
	now := time.Date(2024, 3, 14, 9, 15, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old := store.Create("refresh")
	now = now.Add(2 * time.Minute)
	fresh := store.Create("refresh")

	if _, err := store.Get(old.ID); err == nil {
		t.Error("expected expired job to be dropped")
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("expected fresh job, got %v", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := store.Update("nonexistent", func(*Job) {}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found on update, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore(100, time.Hour)
	first := store.Create("refresh")
	store.Create("refresh")

	jobs := store.List()
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Error("expected oldest job first")
	}
}
