package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(name string) Player {
	return Player{ID: uuid.New(), Username: name}
}

func TestAddAndPair(t *testing.T) {
	queue := NewQueue(nil, zerolog.Nop())
	ctx := context.Background()
	alice := testPlayer("alice")
	bob := testPlayer("bob")

	result, opponent := queue.AddAndPair(ctx, alice)
	assert.Equal(t, ResultWaiting, result)
	assert.Nil(t, opponent)
	assert.True(t, queue.Contains(alice.ID))

	result, opponent = queue.AddAndPair(ctx, bob)
	assert.Equal(t, ResultPaired, result)
	require.NotNil(t, opponent)
	assert.Equal(t, alice.ID, opponent.Player.ID)

	// Pairing consumes the waiting entry and never inserts the initiator.
	assert.Equal(t, 0, queue.Len())
	assert.False(t, queue.Contains(alice.ID))
	assert.False(t, queue.Contains(bob.ID))
}

func TestAddAndPairAlreadyQueued(t *testing.T) {
	queue := NewQueue(nil, zerolog.Nop())
	ctx := context.Background()
	alice := testPlayer("alice")

	result, _ := queue.AddAndPair(ctx, alice)
	require.Equal(t, ResultWaiting, result)

	result, opponent := queue.AddAndPair(ctx, alice)
	assert.Equal(t, ResultAlreadyQueued, result)
	assert.Nil(t, opponent)
	assert.Equal(t, 1, queue.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	queue := NewQueue(nil, zerolog.Nop())
	ctx := context.Background()
	alice := testPlayer("alice")

	queue.Remove(ctx, alice.ID)

	queue.AddAndPair(ctx, alice)
	queue.Remove(ctx, alice.ID)
	queue.Remove(ctx, alice.ID)
	assert.Equal(t, 0, queue.Len())
}

func TestRemoveMany(t *testing.T) {
	queue := NewQueue(nil, zerolog.Nop())
	ctx := context.Background()
	alice := testPlayer("alice")
	bob := testPlayer("bob")

	queue.AddAndPair(ctx, alice)
	queue.RemoveMany(ctx, []uuid.UUID{alice.ID, bob.ID})

	assert.Equal(t, 0, queue.Len())
	assert.False(t, queue.Contains(alice.ID))
}

func TestConcurrentPairingHandsOutEachEntryOnce(t *testing.T) {
	queue := NewQueue(nil, zerolog.Nop())
	ctx := context.Background()

	const players = 100
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		opponents []uuid.UUID
		paired    int
	)

	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, opponent := queue.AddAndPair(ctx, testPlayer(fmt.Sprintf("p%d", i)))
			if result == ResultPaired {
				mu.Lock()
				paired++
				opponents = append(opponents, opponent.Player.ID)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Every pairing removed exactly one waiting entry, so pairs plus
	// leftovers account for everyone.
	assert.Equal(t, players, paired*2+queue.Len())

	seen := make(map[uuid.UUID]bool, len(opponents))
	for _, id := range opponents {
		assert.False(t, seen[id], "entry handed to two matches")
		seen[id] = true
		assert.False(t, queue.Contains(id), "paired player still waiting")
	}
}

func TestQueueMirrorsMembershipToRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queue := NewQueue(client, zerolog.Nop())
	ctx := context.Background()
	alice := testPlayer("alice")
	bob := testPlayer("bob")

	queue.AddAndPair(ctx, alice)
	members, err := client.ZRange(ctx, queueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID.String()}, members)

	// Pairing clears the waiter's mirror entry too.
	queue.AddAndPair(ctx, bob)
	members, err = client.ZRange(ctx, queueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}
