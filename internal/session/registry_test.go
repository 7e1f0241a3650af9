package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRegistry_AddGetRemove(t *testing.T) {
	reg := NewInMemoryRegistry()
	sess := &Session{ID: "s1"}

	if err := reg.Add(sess); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(&Session{ID: "s1"}); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("expected ErrDuplicateSession, got %v", err)
	}

	got, ok := reg.Get("s1")
	if !ok || got != sess {
		t.Errorf("Get: ok=%v got %p want %p", ok, got, sess)
	}

	removed, ok := reg.Remove("s1")
	if !ok || removed != sess {
		t.Errorf("Remove: ok=%v got %p want %p", ok, removed, sess)
	}
	if _, ok := reg.Remove("s1"); ok {
		t.Error("second Remove should report false")
	}
	if n := reg.ActiveSessionCount(); n != 0 {
		t.Errorf("ActiveSessionCount = %d, want 0", n)
	}
}

func TestInMemoryRegistry_List_ordered_by_creation(t *testing.T) {
	reg := NewInMemoryRegistry()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = reg.Add(&Session{ID: "c", CreatedAt: base.Add(2 * time.Second)})
	_ = reg.Add(&Session{ID: "a", CreatedAt: base})
	_ = reg.Add(&Session{ID: "b", CreatedAt: base.Add(time.Second)})

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i, want := range []SessionID{"a", "b", "c"} {
		if list[i].ID != want {
			t.Errorf("List[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestNewInMemoryRegistryWithStore(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewInMemoryRegistryWithStore(store)
	_ = reg.Add(&Session{ID: "s1"})

	if _, ok := store.GetSession("s1"); !ok {
		t.Error("registry should write through to the given store")
	}
}

func TestInMemoryRegistry_concurrent(t *testing.T) {
	reg := NewInMemoryRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := SessionID(fmt.Sprintf("s%d", i))
			_ = reg.Add(&Session{ID: id})
			_, _ = reg.Get(id)
			_ = reg.ActiveSessionCount()
			if i%2 == 0 {
				reg.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if n := reg.ActiveSessionCount(); n != 25 {
		t.Errorf("ActiveSessionCount = %d, want 25", n)
	}
}
