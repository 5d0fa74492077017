package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/warden/internal/triage"
)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	r := &triage.Result{ID: "t-1", Status: triage.StatusPending}
	if err := s.Put(context.Background(), r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected result to be found")
	}
	if got.ID != "t-1" {
		t.Errorf("ID = %q, want %q", got.ID, "t-1")
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	r := &triage.Result{ID: "t-1", Status: triage.StatusPending}
	_ = s.Put(context.Background(), r)

	got, _, _ := s.Get(context.Background(), "t-1")
	got.Status = triage.StatusFailed

	again, _, _ := s.Get(context.Background(), "t-1")
	if again.Status != triage.StatusPending {
		t.Errorf("stored status mutated to %q", again.Status)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("t-%d", i)
			_ = s.Put(context.Background(), &triage.Result{ID: id})
			if _, ok, _ := s.Get(context.Background(), id); !ok {
				t.Errorf("missing %s after Put", id)
			}
		}()
	}
	wg.Wait()
}
