package session

import (
	"testing"
)

func TestInMemoryStore_GetSetSession(t *testing.T) {
	store := NewInMemoryStore()

	_, ok := store.GetSession(SessionID("s1"))
	if ok {
		t.Error("expected not found for empty store")
	}

	sess := &Session{ID: SessionID("s1")}
	store.SetSession(sess)

	got, ok := store.GetSession(SessionID("s1"))
	if !ok || got != sess {
		t.Errorf("GetSession: ok=%v, got %p want %p", ok, got, sess)
	}
}

func TestInMemoryStore_DeleteSession(t *testing.T) {
	store := NewInMemoryStore()
	store.SetSession(&Session{ID: SessionID("s1")})
	store.DeleteSession(SessionID("s1"))
	store.DeleteSession(SessionID("missing"))

	if _, ok := store.GetSession(SessionID("s1")); ok {
		t.Error("expected s1 to be deleted")
	}
	if ids := store.ListSessionIDs(); len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestInMemoryStore_ListSessionIDs(t *testing.T) {
	store := NewInMemoryStore()
	store.SetSession(&Session{ID: SessionID("a")})
	store.SetSession(&Session{ID: SessionID("b")})

	ids := store.ListSessionIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	seen := map[SessionID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("ListSessionIDs = %v", ids)
	}
}
