package credential

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagi1/baileys-api/internal/model"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string][]byte)}
}

func (m *memRepo) Find(ctx context.Context, sessionID, recordID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[recordID]
	if !ok {
		return nil, nil
	}
	return &model.Credential{SessionID: sessionID, RecordID: recordID, Value: v}, nil
}

func (m *memRepo) Upsert(ctx context.Context, sessionID, recordID string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[recordID] = value
	return nil
}

func (m *memRepo) Delete(ctx context.Context, sessionID, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, recordID)
	return nil
}

func (m *memRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.rows))
	m.rows = make(map[string][]byte)
	return n, nil
}

func (m *memRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"creds", "creds"},
		{"app-state-sync-key/abc", "app-state-sync-key__abc"},
		{"session:1.0", "session-1-0"},
		{"pre-key/1:2.3", "pre-key__1-2-3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalID(tt.in))
	}
}

func TestStoreReadWrite(t *testing.T) {
	t.Run("round trips a blob", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)

		require.NoError(t, store.Write(context.Background(), "record", []byte("payload")))
		got, err := store.Read(context.Background(), "record")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
	})

	t.Run("missing record reads nil", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)

		got, err := store.Read(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("remove deletes the record", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)

		require.NoError(t, store.Write(context.Background(), "record", []byte("payload")))
		require.NoError(t, store.Remove(context.Background(), "record"))

		got, err := store.Read(context.Background(), "record")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("encrypts at rest when a cipher is configured", func(t *testing.T) {
		repo := newMemRepo()
		cipher, err := NewCipher("0000000000000000000000000000000000000000000000000000000000000000")
		require.NoError(t, err)
		store := NewStore("s1", repo, cipher)

		require.NoError(t, store.Write(context.Background(), "record", []byte("secret")))
		assert.NotContains(t, string(repo.rows["record"]), "secret")

		got, err := store.Read(context.Background(), "record")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), got)
	})
}

func TestLoadOrInitCreds(t *testing.T) {
	t.Run("generates fresh credentials on first use", func(t *testing.T) {
		repo := newMemRepo()
		store := NewStore("s1", repo, nil)

		creds, err := store.LoadOrInitCreds(context.Background())
		require.NoError(t, err)
		assert.False(t, creds.Registered)
		assert.NotEmpty(t, creds.NoiseKey.Private)

		// The fresh record is persisted immediately.
		assert.Contains(t, repo.rows, model.CredRecordID)
	})

	t.Run("returns the persisted credentials afterwards", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)

		first, err := store.LoadOrInitCreds(context.Background())
		require.NoError(t, err)

		second, err := store.LoadOrInitCreds(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first.NoiseKey.Private, second.NoiseKey.Private)
		assert.Equal(t, first.RegistrationID, second.RegistrationID)
	})
}

func TestKeyStore(t *testing.T) {
	t.Run("get returns only existing ids", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)
		ks := store.KeyStore()

		require.NoError(t, ks.Set(context.Background(), map[string]map[string][]byte{
			"pre-key": {"1": []byte("a")},
		}))

		got, err := ks.Get(context.Background(), "pre-key", []string{"1", "2"})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"1": []byte("a")}, got)
	})

	t.Run("nil value removes the record", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)
		ks := store.KeyStore()

		require.NoError(t, ks.Set(context.Background(), map[string]map[string][]byte{
			"pre-key": {"1": []byte("a")},
		}))
		require.NoError(t, ks.Set(context.Background(), map[string]map[string][]byte{
			"pre-key": {"1": nil},
		}))

		got, err := ks.Get(context.Background(), "pre-key", []string{"1"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("categories do not collide", func(t *testing.T) {
		store := NewStore("s1", newMemRepo(), nil)
		ks := store.KeyStore()

		require.NoError(t, ks.Set(context.Background(), map[string]map[string][]byte{
			"pre-key":     {"1": []byte("a")},
			"session-key": {"1": []byte("b")},
		}))

		got, err := ks.Get(context.Background(), "session-key", []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), got["1"])
	})
}
