package preview

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewStore(t *testing.T) {
	s := NewStore()
	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if got := len(s.GetAll()); got != 0 {
		t.Errorf("new store has %d requests, want 0", got)
	}
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("new store ActiveCount() = %d, want 0", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	r, ok := s.Get("nonexistent")
	if ok {
		t.Error("Get for missing key returned ok=true")
	}
	if r != nil {
		t.Error("Get for missing key returned non-nil request")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Update(&Request{ID: "a", Seed: "original"})

	got, _ := s.Get("a")
	got.Seed = "mutated"

	got2, _ := s.Get("a")
	if got2.Seed != "original" {
		t.Error("Get did not return a copy; mutation leaked into store")
	}
}

func TestUpdateStoresCopy(t *testing.T) {
	s := NewStore()
	r := &Request{ID: "a", Seed: "original"}
	s.Update(r)

	r.Seed = "mutated"

	got, _ := s.Get("a")
	if got.Seed != "original" {
		t.Error("Update did not copy input; external mutation leaked into store")
	}
}

func TestArrivalOrder(t *testing.T) {
	s := NewStore()
	s.Update(&Request{ID: "a"})
	s.Update(&Request{ID: "b"})
	s.Update(&Request{ID: "c"})

	// Re-updating keeps the original position.
	s.Update(&Request{ID: "a", Phase: Connected})

	all := s.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll returned %d requests, want 3", len(all))
	}
	for i, id := range []string{"a", "b", "c"} {
		if all[i].ID != id {
			t.Errorf("GetAll[%d].ID = %s, want %s", i, all[i].ID, id)
		}
	}
	if all[0].Phase != Connected {
		t.Errorf("re-update lost phase change: %v", all[0].Phase)
	}
}

func TestImages(t *testing.T) {
	s := NewStore()
	s.Update(&Request{ID: "a"})

	if _, ok := s.Image("a"); ok {
		t.Error("Image before SetImage returned ok=true")
	}

	s.SetImage("a", []byte{1, 2, 3})
	png, ok := s.Image("a")
	if !ok || len(png) != 3 {
		t.Errorf("Image = %v, %v; want 3 bytes", png, ok)
	}

	got, _ := s.Get("a")
	if !got.HasImage {
		t.Error("SetImage did not flip HasImage")
	}

	// SetImage for an unknown request is dropped.
	s.SetImage("ghost", []byte{1})
	if _, ok := s.Image("ghost"); ok {
		t.Error("image stored for unknown request")
	}
}

func TestActiveCount(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Update(&Request{ID: "a", Phase: Connected})
	s.Update(&Request{ID: "b", Phase: Queued})
	s.Update(&Request{ID: "c", Phase: Completed, CompletedAt: &now})
	s.Update(&Request{ID: "d", Phase: Failed, CompletedAt: &now})

	if got := s.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount() = %d, want 2", got)
	}
}

func TestPrune(t *testing.T) {
	s := NewStore()
	now := time.Now()
	old := now.Add(-time.Hour)
	recent := now.Add(-time.Minute)

	s.Update(&Request{ID: "old", Phase: Completed, CompletedAt: &old})
	s.Update(&Request{ID: "recent", Phase: Completed, CompletedAt: &recent})
	s.Update(&Request{ID: "running", Phase: Connected})
	s.SetImage("old", []byte{1})

	removed := s.Prune(10*time.Minute, now)
	if len(removed) != 1 || removed[0] != "old" {
		t.Errorf("Prune removed %v, want [old]", removed)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("pruned request still in store")
	}
	if _, ok := s.Image("old"); ok {
		t.Error("pruned request's image still in store")
	}
	if _, ok := s.Get("recent"); !ok {
		t.Error("recent terminal request was pruned")
	}
	if _, ok := s.Get("running"); !ok {
		t.Error("running request was pruned")
	}
}

func TestStoreConcurrency(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("req-%d", i)
			for j := 0; j < 100; j++ {
				s.Update(&Request{ID: id, Phase: Connected})
				s.Get(id)
				s.GetAll()
				s.ActiveCount()
			}
		}(i)
	}
	wg.Wait()

	if got := len(s.GetAll()); got != 10 {
		t.Errorf("store has %d requests, want 10", got)
	}
}
