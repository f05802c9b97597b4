// Package credential persists per-session protocol credentials and key
// material, and adapts the blob storage to the transport layer's
// key-store contract.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/transport"
)

// CanonicalID rewrites characters unsafe for the storage key. Mirrors
// the record naming of the protocol layer: "/" becomes "__", ":" and
// "." become "-".
func CanonicalID(id string) string {
	id = strings.ReplaceAll(id, "/", "__")
	id = strings.ReplaceAll(id, ":", "-")
	id = strings.ReplaceAll(id, ".", "-")
	return id
}

func keyRecordID(category, id string) string {
	return CanonicalID(fmt.Sprintf("%s-%s", category, id))
}

// Store is the credential store for one session.
type Store struct {
	sessionID string
	repo      repository.CredentialRepository
	cipher    *Cipher
}

func NewStore(sessionID string, repo repository.CredentialRepository, cipher *Cipher) *Store {
	return &Store{
		sessionID: sessionID,
		repo:      repo,
		cipher:    cipher,
	}
}

// Read returns the blob stored under the given record id, or nil if
// absent.
func (s *Store) Read(ctx context.Context, recordID string) ([]byte, error) {
	cred, err := s.repo.Find(ctx, s.sessionID, CanonicalID(recordID))
	if err != nil {
		return nil, fmt.Errorf("read credential %s: %w", recordID, err)
	}
	if cred == nil {
		return nil, nil
	}

	value, err := s.cipher.Open(cred.Value)
	if err != nil {
		return nil, fmt.Errorf("open credential %s: %w", recordID, err)
	}
	return value, nil
}

func (s *Store) Write(ctx context.Context, recordID string, value []byte) error {
	sealed, err := s.cipher.Seal(value)
	if err != nil {
		return fmt.Errorf("seal credential %s: %w", recordID, err)
	}
	if err := s.repo.Upsert(ctx, s.sessionID, CanonicalID(recordID), sealed); err != nil {
		return fmt.Errorf("write credential %s: %w", recordID, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, recordID string) error {
	if err := s.repo.Delete(ctx, s.sessionID, CanonicalID(recordID)); err != nil {
		return fmt.Errorf("remove credential %s: %w", recordID, err)
	}
	return nil
}

// LoadOrInitCreds reads the primary credential record, generating fresh
// key material on first use.
func (s *Store) LoadOrInitCreds(ctx context.Context) (*model.AuthCreds, error) {
	data, err := s.Read(ctx, model.CredRecordID)
	if err != nil {
		return nil, err
	}

	if data == nil {
		creds, err := model.NewAuthCreds()
		if err != nil {
			return nil, fmt.Errorf("init credentials: %w", err)
		}
		if err := s.SaveCreds(ctx, creds); err != nil {
			return nil, err
		}
		log.Info().Str("sessionId", s.sessionID).Msg("initialized fresh credentials")
		return creds, nil
	}

	var creds model.AuthCreds
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (s *Store) SaveCreds(ctx context.Context, creds *model.AuthCreds) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return s.Write(ctx, model.CredRecordID, data)
}

// KeyStore returns the adapter satisfying the transport key-store
// contract for this session.
func (s *Store) KeyStore() transport.KeyStore {
	return &keyStore{store: s}
}

type keyStore struct {
	store *Store
}

// Get batches the reads concurrently and returns only the ids that
// exist.
func (k *keyStore) Get(ctx context.Context, category string, ids []string) (map[string][]byte, error) {
	var mu sync.Mutex
	found := make(map[string][]byte, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			value, err := k.store.Read(ctx, keyRecordID(category, id))
			if err != nil {
				return err
			}
			if value != nil {
				mu.Lock()
				found[id] = value
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// Set applies each patch concurrently: a non-nil value is written, a
// nil value removes the record.
func (k *keyStore) Set(ctx context.Context, patches map[string]map[string][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	for category, entries := range patches {
		for id, value := range entries {
			recordID := keyRecordID(category, id)
			g.Go(func() error {
				if value != nil {
					return k.store.Write(ctx, recordID, value)
				}
				return k.store.Remove(ctx, recordID)
			})
		}
	}
	return g.Wait()
}
