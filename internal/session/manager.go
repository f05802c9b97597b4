package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/config"
	"github.com/nagi1/baileys-api/internal/credential"
	apperrors "github.com/nagi1/baileys-api/internal/errors"
	"github.com/nagi1/baileys-api/internal/mirror"
	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/sse"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

// Stores groups the persistence dependencies the manager wires into
// every session it spawns.
type Stores struct {
	Configs     repository.SessionConfigRepository
	Credentials repository.CredentialRepository
	Chats       repository.ChatRepository
	Contacts    repository.ContactRepository
	Groups      repository.GroupRepository
	Messages    repository.MessageRepository
}

// Manager is the in-process session registry. It owns the id-keyed
// retry and QR budgets and the pending restart timers; all map access
// goes through the mutex, never through bare map reads.
type Manager struct {
	cfg     *config.Config
	factory transport.Factory
	stores  Stores
	relay   *webhook.Relay
	broker  *sse.Broker
	cipher  *credential.Cipher

	mu         sync.RWMutex
	sessions   map[string]*Session
	retries    map[string]int
	qrAttempts map[string]int
	timers     map[string]*time.Timer
}

func NewManager(
	cfg *config.Config,
	factory transport.Factory,
	stores Stores,
	relay *webhook.Relay,
	broker *sse.Broker,
	cipher *credential.Cipher,
) *Manager {
	return &Manager{
		cfg:        cfg,
		factory:    factory,
		stores:     stores,
		relay:      relay,
		broker:     broker,
		cipher:     cipher,
		sessions:   make(map[string]*Session),
		retries:    make(map[string]int),
		qrAttempts: make(map[string]int),
		timers:     make(map[string]*time.Timer),
	}
}

// Create persists the session options and spawns the live session. The
// id must be free; creating an existing id is rejected.
func (m *Manager) Create(ctx context.Context, opts *model.SessionOptions) (*Session, error) {
	if opts == nil || opts.SessionID == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if m.Exists(opts.SessionID) {
		return nil, apperrors.AlreadyExists("session")
	}

	m.normalizeOptions(opts)

	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal session options: %w", err)
	}
	if err := m.stores.Configs.Upsert(ctx, opts.SessionID, model.DefaultConfigID, data); err != nil {
		return nil, apperrors.Database(err)
	}

	return m.start(ctx, opts, true)
}

// Restore respawns every persisted session after a process restart.
// A session that fails to start is logged and skipped; one bad record
// must not take the rest of the fleet down.
func (m *Manager) Restore(ctx context.Context) error {
	configs, err := m.stores.Configs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list session configs: %w", err)
	}

	for _, cfg := range configs {
		if cfg.ConfigID != model.DefaultConfigID {
			continue
		}
		var opts model.SessionOptions
		if err := json.Unmarshal(cfg.Data, &opts); err != nil {
			log.Error().Err(err).Str("sessionId", cfg.SessionID).Msg("skipping session with corrupt options")
			continue
		}
		if opts.SessionID == "" {
			opts.SessionID = cfg.SessionID
		}
		if _, err := m.start(ctx, &opts, false); err != nil {
			log.Error().Err(err).Str("sessionId", cfg.SessionID).Msg("failed to restore session")
		}
	}

	log.Info().Int("count", len(configs)).Msg("session restore complete")
	return nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// UpdateOptions persists new options for a live session. The running
// session keeps its current options; the persisted ones take effect on
// the next respawn, which reloads them from the store.
func (m *Manager) UpdateOptions(ctx context.Context, id string, opts *model.SessionOptions) error {
	if !m.Exists(id) {
		return apperrors.NotFound("session")
	}

	opts.SessionID = id
	m.normalizeOptions(opts)

	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshal session options: %w", err)
	}
	if err := m.stores.Configs.Upsert(ctx, id, model.DefaultConfigID, data); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// Delete destroys a session: transport logout, removal of its durable
// state and eviction from the registry. Deleting an id with no live
// session still disarms any pending reconnect timer and drops the
// durable rows, so a delete issued during a backoff window stays
// terminal; repeating it is a no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, ok := m.Get(id)
	if !ok {
		m.evict(id)
		m.purgeDurable(ctx, id, true)
		m.publishDestroyed(ctx, id)
		return nil
	}
	s.failWaiter(apperrors.New(apperrors.ErrCodeNotFound, "session destroyed"))
	m.destroy(ctx, s, true)
	return nil
}

// Shutdown closes every live socket without touching durable state, so
// the fleet can be restored on the next boot.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.teardown(ctx, false)
	}
	log.Info().Int("count", len(sessions)).Msg("sessions shut down")
}

// start builds the socket, wires the mirror handlers and registers the
// session. carryWaiter survives restarts so a long poll opened against
// the original socket is answered by its replacement.
func (m *Manager) start(ctx context.Context, opts *model.SessionOptions, failIfExists bool) (*Session, error) {
	return m.startWith(ctx, opts, failIfExists, nil)
}

func (m *Manager) startWith(ctx context.Context, opts *model.SessionOptions, failIfExists bool, carry *Waiter) (*Session, error) {
	id := opts.SessionID

	store := credential.NewStore(id, m.stores.Credentials, m.cipher)
	creds, err := store.LoadOrInitCreds(ctx)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	sock, err := m.factory.NewSocket(sctx, transport.SocketOptions{
		SessionID: id,
		Proxy:     opts.Proxy,
		Config:    opts.Transport,
		Auth: transport.AuthState{
			Creds: creds,
			Keys:  store.KeyStore(),
		},
	})
	if err != nil {
		cancel()
		return nil, apperrors.Transport(err)
	}

	dispatcher := transport.NewDispatcher()
	s := &Session{
		id:         id,
		opts:       opts,
		mgr:        m,
		sock:       sock,
		dispatcher: dispatcher,
		creds:      store,
		ctx:        sctx,
		cancel:     cancel,
		waiter:     carry,
		registered: creds.Registered,
	}
	s.handlers = []mirror.Handler{
		mirror.NewChatHandler(id, opts, m.stores.Chats, dispatcher, m.relay),
		mirror.NewContactHandler(id, opts, m.stores.Contacts, dispatcher, m.relay),
		mirror.NewGroupHandler(id, opts, m.stores.Groups, dispatcher, m.relay),
		mirror.NewMessageHandler(id, opts, m.stores.Messages, m.stores.Chats, dispatcher, m.relay),
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		sock.End(nil)
		cancel()
		if failIfExists {
			return nil, apperrors.AlreadyExists("session")
		}
		return nil, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	for _, h := range s.handlers {
		h.Listen()
	}
	go s.run()
	go func() {
		if err := sock.Connect(sctx); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("transport connect failed")
		}
	}()

	log.Info().Str("sessionId", id).Msg("session started")
	return s, nil
}

// restart tears down the socket and spawns a fresh one for the same id,
// immediately or after a delay. A pending restart timer for the id is
// replaced, never stacked.
func (m *Manager) restart(s *Session, delay time.Duration) {
	carry := s.takeWaiter()

	s.teardown(context.Background(), false)

	respawn := func() {
		m.mu.Lock()
		delete(m.timers, s.id)
		m.mu.Unlock()

		if m.Exists(s.id) {
			// Someone recreated the id in the meantime, leave it alone.
			return
		}

		// Respawn from the persisted options: an options update taken
		// during the backoff applies here, and a missing config row
		// means the session was deleted, which is terminal.
		ctx := context.Background()
		opts, err := m.loadOptions(ctx, s.id)
		if err != nil {
			log.Error().Err(err).Str("sessionId", s.id).Msg("failed to load options for respawn")
			if carry != nil {
				carry.Deliver(Result{Err: err})
			}
			return
		}
		if opts == nil {
			log.Info().Str("sessionId", s.id).Msg("session deleted during backoff, not respawning")
			return
		}
		if _, err := m.startWith(ctx, opts, false, carry); err != nil {
			log.Error().Err(err).Str("sessionId", s.id).Msg("failed to respawn session")
			if carry != nil {
				carry.Deliver(Result{Err: err})
			}
		}
	}

	// Eviction and timer arming share one critical section so a
	// concurrent Delete either sees the live entry or the armed timer,
	// never a gap between the two.
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	if t, ok := m.timers[s.id]; ok {
		t.Stop()
		delete(m.timers, s.id)
	}
	if delay > 0 {
		m.timers[s.id] = time.AfterFunc(delay, respawn)
	}
	m.mu.Unlock()

	if delay <= 0 {
		go respawn()
	}
}

// destroy is the terminal teardown: socket closed, registry entry and
// budgets dropped, durable mirror and config rows removed. Credentials
// are purged on logout, otherwise only when configured to. Safe to call
// twice for the same session.
func (m *Manager) destroy(ctx context.Context, s *Session, logout bool) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	delete(m.retries, s.id)
	delete(m.qrAttempts, s.id)
	if t, ok := m.timers[s.id]; ok {
		t.Stop()
		delete(m.timers, s.id)
	}
	m.mu.Unlock()

	s.teardown(ctx, logout)
	m.purgeDurable(ctx, s.id, logout)
	m.publishDestroyed(ctx, s.id)

	log.Info().Str("sessionId", s.id).Bool("logout", logout).Msg("session destroyed")
}

// evict drops every in-memory trace of an id: registry entry, budgets
// and a pending reconnect timer. A stopped timer never respawns.
func (m *Manager) evict(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.retries, id)
	delete(m.qrAttempts, id)
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

// purgeDurable removes the persisted rows of a session. Credentials go
// on logout, otherwise only when configured to.
func (m *Manager) purgeDurable(ctx context.Context, id string, logout bool) {
	if _, err := m.stores.Configs.DeleteAllForSession(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete session config")
	}
	if logout || m.cfg.PurgeCredsOnDestroy {
		if _, err := m.stores.Credentials.DeleteAllForSession(ctx, id); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to purge credentials")
		}
	}
	m.purgeMirror(ctx, id)
}

func (m *Manager) publishDestroyed(ctx context.Context, id string) {
	if m.broker == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"sessionId": id})
	if err := m.broker.Publish(ctx, id, sse.Event{Type: sse.EventTypeDestroyed, Data: payload}); err != nil {
		log.Debug().Err(err).Str("sessionId", id).Msg("failed to publish destroy event")
	}
}

// purgeMirror drops the mirrored rows of a session. Each table is
// attempted independently; the cleanup job sweeps up anything missed
// here.
func (m *Manager) purgeMirror(ctx context.Context, id string) {
	if _, err := m.stores.Messages.DeleteAllForSession(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete messages")
	}
	if _, err := m.stores.Chats.DeleteAllForSession(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete chats")
	}
	if _, err := m.stores.Contacts.DeleteAllForSession(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete contacts")
	}
	if _, err := m.stores.Groups.DeleteAllForSession(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to delete groups")
	}
}

// loadOptions reads the persisted options for an id, nil when the
// config row is gone.
func (m *Manager) loadOptions(ctx context.Context, id string) (*model.SessionOptions, error) {
	row, err := m.stores.Configs.Find(ctx, id, model.DefaultConfigID)
	if err != nil {
		return nil, fmt.Errorf("load session options: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	var opts model.SessionOptions
	if err := json.Unmarshal(row.Data, &opts); err != nil {
		return nil, fmt.Errorf("unmarshal session options: %w", err)
	}
	if opts.SessionID == "" {
		opts.SessionID = id
	}
	return &opts, nil
}

// normalizeOptions fills the webhook block from the process-wide
// defaults when the caller did not provide one.
func (m *Manager) normalizeOptions(opts *model.SessionOptions) {
	if opts.Webhook == nil && m.cfg.WebhookEnabled {
		opts.Webhook = &model.WebhookOptions{
			Enabled: true,
			URL:     m.cfg.WebhookURL,
		}
	}
}

func (m *Manager) retryCount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retries[id]
}

func (m *Manager) incrementRetry(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[id]++
	return m.retries[id]
}

func (m *Manager) incrementQRAttempts(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrAttempts[id]++
	return m.qrAttempts[id]
}

// clearCounters zeroes the per-id budgets once a connection opens.
func (m *Manager) clearCounters(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retries, id)
	delete(m.qrAttempts, id)
}

// QRAttemptCount reports the current QR budget usage for an id.
func (m *Manager) QRAttemptCount(id string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.qrAttempts[id]
	return n, ok
}

// RetryCount reports the current reconnect budget usage for an id.
func (m *Manager) RetryCount(id string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.retries[id]
	return n, ok
}
