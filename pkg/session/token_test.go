package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/IMBotPlatform/AskWidget/pkg/storage"
)

func TestTokenIsStableWithinTab(t *testing.T) {
	store := storage.NewMemoryStorage()
	id := NewIdentity(store)

	first := id.Token()
	if !IsToken(first) {
		t.Fatalf("token is not v4 shaped: %s", first)
	}
	if second := id.Token(); second != first {
		t.Fatalf("token changed within tab: %s vs %s", first, second)
	}

	// 同一存储上的新实例（模拟页面刷新）复用持久化的令牌
	reloaded := NewIdentity(store)
	if got := reloaded.Token(); got != first {
		t.Fatalf("token not restored after reload: %s vs %s", got, first)
	}
}

func TestRegenerateReplacesToken(t *testing.T) {
	store := storage.NewMemoryStorage()
	id := NewIdentity(store)
	old := id.Token()
	fresh := id.Regenerate()
	if fresh == old {
		t.Fatalf("regenerate returned the same token")
	}
	stored, ok, _ := store.Get(DefaultKey)
	if !ok || stored != fresh {
		t.Fatalf("regenerated token not persisted: %q", stored)
	}
}

func TestFallbackWhenGeneratorFails(t *testing.T) {
	id := NewIdentity(storage.NewMemoryStorage(), WithGenerator(func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("no entropy")
	}))
	token := id.Token()
	if !IsToken(token) {
		t.Fatalf("fallback token is not v4 shaped: %s", token)
	}
}

func TestFallbackTokenShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 256; i++ {
		tok := FallbackToken()
		if !IsToken(tok) {
			t.Fatalf("bad fallback token: %s", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate fallback token: %s", tok)
		}
		seen[tok] = true
	}
}

func TestTokenWithoutStorage(t *testing.T) {
	id := NewIdentity(nil)
	tok := id.Token()
	if tok == "" || tok != id.Token() {
		t.Fatalf("token without storage should still be stable: %q", tok)
	}
}

func TestCustomKey(t *testing.T) {
	store := storage.NewMemoryStorage()
	id := NewIdentity(store, WithKey("tab.sid"))
	tok := id.Token()
	if v, ok, _ := store.Get("tab.sid"); !ok || v != tok {
		t.Fatalf("token not stored under custom key")
	}
}
