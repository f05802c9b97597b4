package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/transport"
)

func newChatFixture() (*ChatHandler, *recChatRepo, *transport.Dispatcher) {
	repo := newRecChatRepo()
	dispatcher := transport.NewDispatcher()
	h := NewChatHandler("s1", &model.SessionOptions{SessionID: "s1"}, repo, dispatcher, nil)
	h.Listen()
	return h, repo, dispatcher
}

func TestUnreadAction(t *testing.T) {
	t.Run("positive increments", func(t *testing.T) {
		increment, value := unreadAction(3)
		assert.True(t, increment)
		assert.Equal(t, 3, value)
	})

	t.Run("zero sets", func(t *testing.T) {
		increment, value := unreadAction(0)
		assert.False(t, increment)
		assert.Equal(t, 0, value)
	})

	t.Run("negative sets", func(t *testing.T) {
		increment, value := unreadAction(-2)
		assert.False(t, increment)
		assert.Equal(t, -2, value)
	})
}

func TestChatHandlerHistorySet(t *testing.T) {
	t.Run("union merge keeps existing rows", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()
		repo.seed("chat-1")

		dispatcher.Emit(context.Background(), transport.HistorySet{
			Chats: []transport.Chat{
				{ID: "chat-1", Name: ptr("renamed")},
				{ID: "chat-2", Name: ptr("fresh")},
			},
		})

		assert.Len(t, repo.inserted, 2)
		// The pre-existing row keeps its state, the new one lands.
		require.NotNil(t, repo.rows["chat-1"])
		assert.Nil(t, repo.rows["chat-1"].Name)
		require.NotNil(t, repo.rows["chat-2"])
	})

	t.Run("empty set is a no-op", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()

		dispatcher.Emit(context.Background(), transport.HistorySet{})
		assert.Empty(t, repo.inserted)
	})
}

func TestChatHandlerUpsert(t *testing.T) {
	t.Run("stores the wire fields", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()

		dispatcher.Emit(context.Background(), transport.ChatsUpsert{
			Chats: []transport.Chat{{ID: "chat-1", UnreadCount: ptr(2)}},
		})

		require.Len(t, repo.upserts, 1)
		assert.Equal(t, "chat-1", repo.upserts[0].ID)
		assert.Equal(t, ptr(2), repo.upserts[0].UnreadCount)
		assert.Equal(t, "s1", repo.upserts[0].SessionID)
	})

	t.Run("absent unread count keeps the stored value", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()
		repo.seed("chat-1")
		repo.rows["chat-1"].UnreadCount = 3

		dispatcher.Emit(context.Background(), transport.ChatsUpsert{
			Chats: []transport.Chat{{ID: "chat-1", Name: ptr("renamed")}},
		})

		require.Len(t, repo.upserts, 1)
		assert.Nil(t, repo.upserts[0].UnreadCount)
		assert.Equal(t, 3, repo.rows["chat-1"].UnreadCount)
		assert.Equal(t, ptr("renamed"), repo.rows["chat-1"].Name)
	})
}

func TestChatHandlerUpdate(t *testing.T) {
	t.Run("positive unread count increments atomically", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()
		repo.seed("chat-1")

		dispatcher.Emit(context.Background(), transport.ChatsUpdate{
			Updates: []transport.Chat{{ID: "chat-1", UnreadCount: ptr(5)}},
		})

		assert.Equal(t, 5, repo.increments["chat-1"])
		assert.Empty(t, repo.unreadSets)
	})

	t.Run("non-positive unread count is an absolute set", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()
		repo.seed("chat-1")

		dispatcher.Emit(context.Background(), transport.ChatsUpdate{
			Updates: []transport.Chat{{ID: "chat-1", UnreadCount: ptr(0)}},
		})

		assert.Equal(t, 0, repo.unreadSets["chat-1"])
		assert.Empty(t, repo.increments)
	})

	t.Run("unknown chat is skipped", func(t *testing.T) {
		_, repo, dispatcher := newChatFixture()

		dispatcher.Emit(context.Background(), transport.ChatsUpdate{
			Updates: []transport.Chat{{ID: "ghost", UnreadCount: ptr(5)}},
		})

		assert.Empty(t, repo.fieldUpdates)
		assert.Empty(t, repo.increments)
	})
}

func TestChatHandlerDelete(t *testing.T) {
	_, repo, dispatcher := newChatFixture()
	repo.seed("chat-1")
	repo.seed("chat-2")

	dispatcher.Emit(context.Background(), transport.ChatsDelete{IDs: []string{"chat-1", "chat-2"}})

	assert.Equal(t, []string{"chat-1", "chat-2"}, repo.deletedIDs)
	assert.Empty(t, repo.rows)
}

func TestChatHandlerUnlisten(t *testing.T) {
	h, repo, dispatcher := newChatFixture()
	h.Unlisten()

	dispatcher.Emit(context.Background(), transport.ChatsUpsert{
		Chats: []transport.Chat{{ID: "chat-1"}},
	})

	assert.Empty(t, repo.upserts)

	// Listen again and events flow once more.
	h.Listen()
	dispatcher.Emit(context.Background(), transport.ChatsUpsert{
		Chats: []transport.Chat{{ID: "chat-1"}},
	})
	assert.Len(t, repo.upserts, 1)
}
