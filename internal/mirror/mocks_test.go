package mirror

import (
	"context"
	"sync"

	"github.com/nagi1/baileys-api/internal/model"
)

type recChatRepo struct {
	mu           sync.Mutex
	rows         map[string]*model.Chat
	upserts      []model.UpsertChatParams
	inserted     []model.UpsertChatParams
	fieldUpdates []model.UpsertChatParams
	increments   map[string]int
	unreadSets   map[string]int
	deletedIDs   []string
}

func newRecChatRepo() *recChatRepo {
	return &recChatRepo{
		rows:       make(map[string]*model.Chat),
		increments: make(map[string]int),
		unreadSets: make(map[string]int),
	}
}

func (r *recChatRepo) seed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id] = &model.Chat{ID: id}
}

func (r *recChatRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *recChatRepo) Exists(ctx context.Context, sessionID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok, nil
}

func (r *recChatRepo) Upsert(ctx context.Context, params model.UpsertChatParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, params)
	row, ok := r.rows[params.ID]
	if !ok {
		row = &model.Chat{ID: params.ID}
		r.rows[params.ID] = row
	}
	if params.Name != nil {
		row.Name = params.Name
	}
	// Absent counters never overwrite, matching the SQL COALESCE.
	if params.UnreadCount != nil {
		row.UnreadCount = *params.UnreadCount
	}
	return nil
}

func (r *recChatRepo) InsertIgnore(ctx context.Context, params model.UpsertChatParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, params)
	if _, ok := r.rows[params.ID]; ok {
		return false, nil
	}
	var unread int
	if params.UnreadCount != nil {
		unread = *params.UnreadCount
	}
	r.rows[params.ID] = &model.Chat{ID: params.ID, Name: params.Name, UnreadCount: unread}
	return true, nil
}

func (r *recChatRepo) UpdateFields(ctx context.Context, params model.UpsertChatParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fieldUpdates = append(r.fieldUpdates, params)
	return nil
}

func (r *recChatRepo) IncrementUnread(ctx context.Context, sessionID, id string, by int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments[id] += by
	return nil
}

func (r *recChatRepo) SetUnread(ctx context.Context, sessionID, id string, value int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreadSets[id] = value
	return nil
}

func (r *recChatRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedIDs = append(r.deletedIDs, ids...)
	for _, id := range ids {
		delete(r.rows, id)
	}
	return int64(len(ids)), nil
}

func (r *recChatRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (r *recChatRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }

func (r *recChatRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Chat, error) {
	return nil, nil
}

type recContactRepo struct {
	mu           sync.Mutex
	rows         map[string]*model.Contact
	upserts      []model.UpsertContactParams
	fieldUpdates []model.UpsertContactParams
}

func newRecContactRepo() *recContactRepo {
	return &recContactRepo{rows: make(map[string]*model.Contact)}
}

func (r *recContactRepo) seed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id] = &model.Contact{ID: id}
}

func (r *recContactRepo) FindByID(ctx context.Context, sessionID, id string) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *recContactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, params)
	r.rows[params.ID] = &model.Contact{ID: params.ID, Name: params.Name, Notify: params.Notify}
	return nil
}

func (r *recContactRepo) InsertIgnore(ctx context.Context, params model.UpsertContactParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[params.ID]; ok {
		return false, nil
	}
	r.rows[params.ID] = &model.Contact{ID: params.ID, Name: params.Name, Notify: params.Notify}
	return true, nil
}

func (r *recContactRepo) UpdateFields(ctx context.Context, params model.UpsertContactParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fieldUpdates = append(r.fieldUpdates, params)
	return nil
}

func (r *recContactRepo) DeleteByIDs(ctx context.Context, sessionID string, ids []string) (int64, error) {
	return 0, nil
}

func (r *recContactRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (r *recContactRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }

func (r *recContactRepo) List(ctx context.Context, sessionID string, cursor int64, limit int) ([]model.Contact, error) {
	return nil, nil
}

type recMessageRepo struct {
	mu          sync.Mutex
	rows        map[string]*model.Message
	upserts     []model.UpsertMessageParams
	receiptSets map[string]model.ReceiptList
	reactionSet map[string]model.ReactionList
	deletedKeys []string
	deletedChat string
}

func newRecMessageRepo() *recMessageRepo {
	return &recMessageRepo{
		rows:        make(map[string]*model.Message),
		receiptSets: make(map[string]model.ReceiptList),
		reactionSet: make(map[string]model.ReactionList),
	}
}

func msgKey(chatID, messageID string) string { return chatID + "/" + messageID }

func (r *recMessageRepo) seed(msg *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[msgKey(msg.ChatID, msg.MessageID)] = msg
}

func (r *recMessageRepo) FindByKey(ctx context.Context, sessionID, chatID, messageID string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[msgKey(chatID, messageID)], nil
}

func (r *recMessageRepo) Upsert(ctx context.Context, params model.UpsertMessageParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, params)
	r.rows[msgKey(params.ChatID, params.MessageID)] = &model.Message{
		SessionID: params.SessionID, ChatID: params.ChatID, MessageID: params.MessageID,
		PushName: params.PushName, MessageTimestamp: params.MessageTimestamp,
		Status: params.Status, Content: params.Content,
	}
	return nil
}

func (r *recMessageRepo) InsertIgnore(ctx context.Context, params model.UpsertMessageParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[msgKey(params.ChatID, params.MessageID)]; ok {
		return false, nil
	}
	r.rows[msgKey(params.ChatID, params.MessageID)] = &model.Message{
		SessionID: params.SessionID, ChatID: params.ChatID, MessageID: params.MessageID,
	}
	return true, nil
}

func (r *recMessageRepo) SetReceipts(ctx context.Context, sessionID, chatID, messageID string, receipts model.ReceiptList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiptSets[msgKey(chatID, messageID)] = receipts
	return nil
}

func (r *recMessageRepo) SetReactions(ctx context.Context, sessionID, chatID, messageID string, reactions model.ReactionList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactionSet[msgKey(chatID, messageID)] = reactions
	return nil
}

func (r *recMessageRepo) DeleteByKey(ctx context.Context, sessionID, chatID, messageID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedKeys = append(r.deletedKeys, msgKey(chatID, messageID))
	delete(r.rows, msgKey(chatID, messageID))
	return 1, nil
}

func (r *recMessageRepo) DeleteByChat(ctx context.Context, sessionID, chatID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedChat = chatID
	return 1, nil
}

func (r *recMessageRepo) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (r *recMessageRepo) DeleteOrphans(ctx context.Context) (int64, error) { return 0, nil }

func (r *recMessageRepo) List(ctx context.Context, sessionID, chatID string, cursor int64, limit int) ([]model.Message, error) {
	return nil, nil
}

func ptr[T any](v T) *T { return &v }
