package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "otomart/internal/infrastructure/websocket"
	apperrors "otomart/pkg/errors"
)

func sendN(t *testing.T, env *testEnv, senderID, conversationID int64, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		resp, err := env.messageUC.SendMessage(context.Background(), senderID, SendMessageInput{
			ConversationID: conversationID,
			Content:        "pesan",
		})
		require.NoError(t, err)
		ids = append(ids, resp.Message.ID)
	}
	return ids
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newTestEnv(true)
	conv := seedPair(t, env)
	ctx := context.Background()

	sendN(t, env, 1, conv.ID, 3)
	env.publisher.reset()

	marked, err := env.receiptUC.MarkRead(ctx, 2, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	events := env.publisher.byKind(ws.EventMessageRead)
	require.Len(t, events, 1)
	payload, ok := events[0].data.(ws.ReadPayload)
	require.True(t, ok)
	assert.Len(t, payload.MessageIDs, 3)
	assert.Equal(t, int64(2), payload.ReaderID)

	// Second pass over the same range: nothing marked, nothing emitted.
	marked, err = env.receiptUC.MarkRead(ctx, 2, conv.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Len(t, env.publisher.byKind(ws.EventMessageRead), 1)
}

func TestMarkReadUptoBoundary(t *testing.T) {
	env := newTestEnv(true)
	conv := seedPair(t, env)
	ctx := context.Background()

	ids := sendN(t, env, 1, conv.ID, 3)

	marked, err := env.receiptUC.MarkRead(ctx, 2, conv.ID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	unread, err := env.receiptUC.UnreadCount(ctx, 2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// The boundary message itself is included, later ones are not.
	marked, err = env.receiptUC.MarkRead(ctx, 2, conv.ID, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	env := newTestEnv(true)
	conv := seedPair(t, env)
	env.store.addUser(3, "agus")

	_, err := env.receiptUC.MarkRead(context.Background(), 3, conv.ID, 0)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "NOT_A_PARTICIPANT"))
}

func TestUnreadConvergesUnderInterleaving(t *testing.T) {
	env := newTestEnv(true)
	conv := seedPair(t, env)
	ctx := context.Background()

	sendN(t, env, 1, conv.ID, 5)

	unread, err := env.receiptUC.UnreadCount(ctx, 2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), unread)

	_, err = env.receiptUC.MarkRead(ctx, 2, conv.ID, 0)
	require.NoError(t, err)

	sendN(t, env, 2, conv.ID, 2) // replies do not count against the reader
	sendN(t, env, 1, conv.ID, 3)

	unread, err = env.receiptUC.UnreadCount(ctx, 2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	marked, err := env.receiptUC.MarkRead(ctx, 2, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	unread, err = env.receiptUC.UnreadCount(ctx, 2, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestUnreadTotalSpansConversations(t *testing.T) {
	env := newTestEnv(true)
	conv := seedPair(t, env)
	env.store.addUser(3, "agus")
	ctx := context.Background()

	other, err := env.convUC.GetOrCreatePrivate(ctx, 3, 2)
	require.NoError(t, err)

	sendN(t, env, 1, conv.ID, 2)
	sendN(t, env, 3, other.ID, 4)

	total, err := env.receiptUC.UnreadTotal(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	_, err = env.receiptUC.MarkRead(ctx, 2, other.ID, 0)
	require.NoError(t, err)

	total, err = env.receiptUC.UnreadTotal(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
