package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/transport"
)

type fakeSocket struct {
	mu           sync.Mutex
	events       chan transport.Event
	state        transport.ReadyState
	user         *model.UserIdentity
	ended        bool
	loggedOut    bool
	pairingCode  string
	pairingCalls int
	exists       bool
	readKeys     []model.MessageKey
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		events:      make(chan transport.Event, 16),
		state:       transport.ReadyStateConnecting,
		pairingCode: "ABCD-1234",
	}
}

func (f *fakeSocket) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = transport.ReadyStateOpen
	return nil
}

func (f *fakeSocket) Events() <-chan transport.Event { return f.events }

func (f *fakeSocket) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeSocket) End(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.ended = true
	f.state = transport.ReadyStateClosed
	close(f.events)
}

func (f *fakeSocket) ReadyState() transport.ReadyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSocket) User() *model.UserIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeSocket) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairingCalls++
	return f.pairingCode, nil
}

func (f *fakeSocket) ReadMessages(ctx context.Context, keys []model.MessageKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readKeys = append(f.readKeys, keys...)
	return nil
}

func (f *fakeSocket) Exists(ctx context.Context, jid string, kind transport.JIDKind) (bool, error) {
	return f.exists, nil
}

func (f *fakeSocket) emit(ev transport.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.events <- ev
}

func (f *fakeSocket) readMessageKeys() []model.MessageKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MessageKey(nil), f.readKeys...)
}

func (f *fakeSocket) wasLoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

type fakeFactory struct {
	mu      sync.Mutex
	sockets []*fakeSocket
}

func (f *fakeFactory) NewSocket(ctx context.Context, opts transport.SocketOptions) (transport.Socket, error) {
	s := newFakeSocket()
	f.mu.Lock()
	f.sockets = append(f.sockets, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sockets)
}

func (f *fakeFactory) last() *fakeSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sockets) == 0 {
		return nil
	}
	return f.sockets[len(f.sockets)-1]
}

type memConfigRepo struct {
	mu   sync.Mutex
	rows map[string]json.RawMessage
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{rows: make(map[string]json.RawMessage)}
}

func (m *memConfigRepo) Find(ctx context.Context, sessionID, configID string) (*model.SessionConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.rows[sessionID]
	if !ok {
		return nil, nil
	}
	return &model.SessionConfig{SessionID: sessionID, ConfigID: configID, Data: data}, nil
}

func (m *memConfigRepo) Upsert(ctx context.Context, sessionID, configID string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[sessionID] = data
	return nil
}

func (m *memConfigRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sessionID]; !ok {
		return 0, nil
	}
	delete(m.rows, sessionID)
	return 1, nil
}

func (m *memConfigRepo) ListAll(ctx context.Context) ([]model.SessionConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SessionConfig, 0, len(m.rows))
	for id, data := range m.rows {
		out = append(out, model.SessionConfig{SessionID: id, ConfigID: model.DefaultConfigID, Data: data})
	}
	return out, nil
}

func (m *memConfigRepo) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[sessionID]
	return ok
}

type memCredRepo struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{rows: make(map[string][]byte)}
}

func (m *memCredRepo) key(sessionID, recordID string) string {
	return sessionID + "/" + recordID
}

func (m *memCredRepo) Find(ctx context.Context, sessionID, recordID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[m.key(sessionID, recordID)]
	if !ok {
		return nil, nil
	}
	return &model.Credential{SessionID: sessionID, RecordID: recordID, Value: v}, nil
}

func (m *memCredRepo) Upsert(ctx context.Context, sessionID, recordID string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[m.key(sessionID, recordID)] = value
	return nil
}

func (m *memCredRepo) Delete(ctx context.Context, sessionID, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, m.key(sessionID, recordID))
	return nil
}

func (m *memCredRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.rows {
		if len(k) > len(sessionID) && k[:len(sessionID)+1] == sessionID+"/" {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memCredRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }

func (m *memCredRepo) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.rows {
		if len(k) > len(sessionID) && k[:len(sessionID)+1] == sessionID+"/" {
			n++
		}
	}
	return n
}

type stubChatRepo struct{}

func (stubChatRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Chat, error) {
	return nil, nil
}
func (stubChatRepo) Exists(ctx context.Context, sessionID, id string) (bool, error) {
	return false, nil
}
func (stubChatRepo) Upsert(ctx context.Context, params model.UpsertChatParams) error { return nil }
func (stubChatRepo) InsertIgnore(ctx context.Context, params model.UpsertChatParams) (bool, error) {
	return true, nil
}
func (stubChatRepo) UpdateFields(ctx context.Context, params model.UpsertChatParams) error {
	return nil
}
func (stubChatRepo) IncrementUnread(ctx context.Context, sessionID, id string, by int) error {
	return nil
}
func (stubChatRepo) SetUnread(ctx context.Context, sessionID, id string, value int) error {
	return nil
}
func (stubChatRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	return 0, nil
}
func (stubChatRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}
func (stubChatRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }
func (stubChatRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Chat, error) {
	return nil, nil
}

type stubContactRepo struct{}

func (stubContactRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Contact, error) {
	return nil, nil
}
func (stubContactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) error {
	return nil
}
func (stubContactRepo) InsertIgnore(ctx context.Context, params model.UpsertContactParams) (bool, error) {
	return true, nil
}
func (stubContactRepo) UpdateFields(ctx context.Context, params model.UpsertContactParams) error {
	return nil
}
func (stubContactRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	return 0, nil
}
func (stubContactRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}
func (stubContactRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }
func (stubContactRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Contact, error) {
	return nil, nil
}

type stubGroupRepo struct{}

func (stubGroupRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Group, error) {
	return nil, nil
}
func (stubGroupRepo) Upsert(ctx context.Context, params model.UpsertGroupParams) error { return nil }
func (stubGroupRepo) UpdateFields(ctx context.Context, params model.UpsertGroupParams) error {
	return nil
}
func (stubGroupRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	return 0, nil
}
func (stubGroupRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}
func (stubGroupRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }
func (stubGroupRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Group, error) {
	return nil, nil
}

type stubMessageRepo struct{}

func (stubMessageRepo) FindByKey(ctx context.Context, sessionID, chatID, messageID string) (*model.Message, error) {
	return nil, nil
}
func (stubMessageRepo) Upsert(ctx context.Context, params model.UpsertMessageParams) error {
	return nil
}
func (stubMessageRepo) InsertIgnore(ctx context.Context, params model.UpsertMessageParams) (bool, error) {
	return true, nil
}
func (stubMessageRepo) SetReceipts(ctx context.Context, sessionID, chatID, messageID string, receipts model.ReceiptList) error {
	return nil
}
func (stubMessageRepo) SetReactions(ctx context.Context, sessionID, chatID, messageID string, reactions model.ReactionList) error {
	return nil
}
func (stubMessageRepo) DeleteByKey(ctx context.Context, sessionID, chatID, messageID string) (int64, error) {
	return 0, nil
}
func (stubMessageRepo) DeleteByChat(ctx context.Context, sessionID, chatID string) (int64, error) {
	return 0, nil
}
func (stubMessageRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}
func (stubMessageRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }
func (stubMessageRepo) List(ctx context.Context, sessionID, chatID string, cursor int64, limit int) ([]model.Message, error) {
	return nil, nil
}
