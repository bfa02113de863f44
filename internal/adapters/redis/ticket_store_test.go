package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/caseboard-ui-api/internal/testutil"
)

func TestTicketStore_IssueAndConsume(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, "ticket-1"))

	ok, err := store.Consume(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTicketStore_ConsumeIsOneTime(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, "ticket-2"))

	ok, err := store.Consume(ctx, "ticket-2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Consume(ctx, "ticket-2")
	require.NoError(t, err)
	assert.False(t, ok, "a redeemed ticket must never redeem again")
}

func TestTicketStore_ConsumeUnknown(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)

	ok, err := store.Consume(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketStore_ConsumeEmptyToken(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)

	ok, err := store.Consume(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketStore_IssueEmptyToken(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)
	require.Error(t, store.Issue(context.Background(), ""))
}

func TestTicketStore_Expiry(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, "ticket-3"))
	time.Sleep(100 * time.Millisecond)

	ok, err := store.Consume(ctx, "ticket-3")
	require.NoError(t, err)
	assert.False(t, ok, "an expired ticket must not redeem")
}

func TestTicketStore_ConcurrentConsumeSingleWinner(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewTicketStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, "ticket-4"))

	const n = 8
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Consume(ctx, "ticket-4")
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent redemption may win")
}
