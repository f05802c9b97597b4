package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherEmitOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	d.On(EventChatsUpsert, func(ctx context.Context, ev Event) {
		order = append(order, 1)
	})
	d.On(EventChatsUpsert, func(ctx context.Context, ev Event) {
		order = append(order, 2)
	})

	d.Emit(context.Background(), ChatsUpsert{})
	assert.Equal(t, []int{1, 2}, order)
}

func TestDispatcherRoutesByEventName(t *testing.T) {
	d := NewDispatcher()

	var chats, contacts int
	d.On(EventChatsUpsert, func(ctx context.Context, ev Event) { chats++ })
	d.On(EventContactsUpsert, func(ctx context.Context, ev Event) { contacts++ })

	d.Emit(context.Background(), ChatsUpsert{})
	d.Emit(context.Background(), ChatsUpsert{})

	assert.Equal(t, 2, chats)
	assert.Equal(t, 0, contacts)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewDispatcher()

	var calls int
	off := d.On(EventChatsUpsert, func(ctx context.Context, ev Event) { calls++ })

	d.Emit(context.Background(), ChatsUpsert{})
	off()
	off() // second call is a no-op
	d.Emit(context.Background(), ChatsUpsert{})

	assert.Equal(t, 1, calls)
}

func TestDispatcherReentrantEmit(t *testing.T) {
	d := NewDispatcher()

	var synthesized int
	d.On(EventChatsUpsert, func(ctx context.Context, ev Event) { synthesized++ })
	d.On(EventMessagesUpsert, func(ctx context.Context, ev Event) {
		// Handlers may emit further events mid-dispatch.
		d.Emit(ctx, ChatsUpsert{})
	})

	d.Emit(context.Background(), MessagesUpsert{})
	assert.Equal(t, 1, synthesized)
}

func TestDispatcherUnsubscribeDuringEmit(t *testing.T) {
	d := NewDispatcher()

	var calls int
	var off func()
	off = d.On(EventChatsUpsert, func(ctx context.Context, ev Event) {
		calls++
		off()
	})

	d.Emit(context.Background(), ChatsUpsert{})
	d.Emit(context.Background(), ChatsUpsert{})

	assert.Equal(t, 1, calls)
}
