package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/IMBotPlatform/AskWidget/pkg/storage"
)

func TestAppendKeepsLastMaxTurns(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	const n = 25
	var appended []Turn
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		appended = append(appended, store.Append(role, fmt.Sprintf("msg-%d", i)))
	}

	snap := store.Snapshot()
	require.Len(t, snap, DefaultMaxTurns)
	assert.Equal(t, appended[n-DefaultMaxTurns:], snap)
}

func TestBoundedForEveryLength(t *testing.T) {
	for max := 1; max <= 4; max++ {
		for n := 0; n <= 9; n++ {
			store := NewStore(nil, WithMaxTurns(max))
			for i := 0; i < n; i++ {
				store.Append(RoleUser, fmt.Sprint(i))
			}
			want := n
			if want > max {
				want = max
			}
			snap := store.Snapshot()
			require.Len(t, snap, want, "max=%d n=%d", max, n)
			if want > 0 {
				assert.Equal(t, fmt.Sprint(n-1), snap[len(snap)-1].Content)
				assert.Equal(t, fmt.Sprint(n-want), snap[0].Content)
			}
		}
	}
}

func TestRoundTripPersistence(t *testing.T) {
	backing := storage.NewMemoryStorage()
	store := NewStore(backing)
	store.Append(RoleUser, "¿Cómo reseteo mi contraseña?")
	store.Append(RoleAssistant, "Sigue estos pasos... <b>&</b>")

	reloaded := NewStore(backing)
	assert.Equal(t, store.Snapshot(), reloaded.Snapshot())

	raw, ok, err := backing.Get(DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "<b>&</b>", "persisted form should not escape HTML")
}

func TestCorruptedStorageRestoresEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	backing := storage.NewMemoryStorage()
	require.NoError(t, backing.Set(DefaultKey, `[{"role":"user","content":`))

	store := NewStore(backing, WithLogger(zap.New(core)))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, logs.FilterMessage("history restore failed, starting empty").Len())

	// 恢复失败后仍可正常追加并覆盖损坏内容
	store.Append(RoleUser, "hola")
	reloaded := NewStore(backing)
	assert.Equal(t, []Turn{{Role: RoleUser, Content: "hola"}}, reloaded.Snapshot())
}

func TestUnknownRoleTreatedAsCorrupted(t *testing.T) {
	backing := storage.NewMemoryStorage()
	require.NoError(t, backing.Set(DefaultKey, `[{"role":"system","content":"x"}]`))
	store := NewStore(backing)
	assert.Equal(t, 0, store.Len())
}

func TestRestoreTrimsOversizedHistory(t *testing.T) {
	backing := storage.NewMemoryStorage()
	big := NewStore(backing, WithMaxTurns(6))
	for i := 0; i < 6; i++ {
		big.Append(RoleUser, fmt.Sprint(i))
	}
	small := NewStore(backing, WithMaxTurns(3))
	snap := small.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "3", snap[0].Content)
}

func TestPersistFailureKeepsInMemoryAppend(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	backing := storage.NewMemoryStorage(storage.WithQuota(40))
	store := NewStore(backing, WithLogger(zap.New(core)))

	store.Append(RoleUser, "short")
	store.Append(RoleAssistant, "a reply long enough to blow through the tiny quota")

	assert.Equal(t, 2, store.Len())
	assert.GreaterOrEqual(t, logs.FilterMessage("history persist failed").Len(), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(nil)
	store.Append(RoleUser, "uno")
	snap := store.Snapshot()
	snap[0].Content = "mutated"
	assert.Equal(t, "uno", store.Snapshot()[0].Content)
}

func TestClearRemovesPersistedCopy(t *testing.T) {
	backing := storage.NewMemoryStorage()
	store := NewStore(backing)
	store.Append(RoleUser, "uno")
	store.Clear()

	assert.Equal(t, 0, store.Len())
	_, ok, err := backing.Get(DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage(), WithMaxTurns(100))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Append(RoleUser, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())

	reloaded := NewStore(store.storage, WithMaxTurns(100))
	assert.Equal(t, store.Snapshot(), reloaded.Snapshot())
}
