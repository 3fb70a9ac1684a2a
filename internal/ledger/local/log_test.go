package local

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/ledger"
)

func testLog(t *testing.T) *Log {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, 50*time.Millisecond)
}

func TestLog_SubmitAssignsSequences(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	r1, err := l.Submit(ctx, "0.0.1001", []byte(`{"n":1}`))
	require.NoError(t, err)
	r2, err := l.Submit(ctx, "0.0.1001", []byte(`{"n":2}`))
	require.NoError(t, err)
	other, err := l.Submit(ctx, "0.0.1002", []byte(`{"n":3}`))
	require.NoError(t, err)

	assert.True(t, r1.OK())
	assert.Equal(t, uint64(1), r1.Sequence)
	assert.Equal(t, uint64(2), r2.Sequence)
	assert.Equal(t, uint64(1), other.Sequence)

	msgs, err := l.Messages(ctx, "0.0.1001")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Contents))
	assert.True(t, msgs[1].ConsensusAt.After(msgs[0].ConsensusAt))

	_, err = l.Submit(ctx, "", nil)
	assert.ErrorIs(t, err, ledger.ErrNoTopic)
}

func TestLog_SubscribeReceivesBacklogAndNewMessages(t *testing.T) {
	l := testLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := l.Submit(ctx, "0.0.1001", []byte(`"before"`))
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- l.Subscribe(ctx, "0.0.1001", time.Time{}, func(m ledger.Message) {
			mu.Lock()
			got = append(got, string(m.Contents))
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = l.Submit(ctx, "0.0.1001", []byte(`"after"`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`"before"`, `"after"`}, got)
}

func TestLog_SubscribeFromSkipsOlderMessages(t *testing.T) {
	l := testLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := l.Submit(ctx, "0.0.1001", []byte(`1`))
	require.NoError(t, err)
	msgs, err := l.Messages(ctx, "0.0.1001")
	require.NoError(t, err)
	_, err = l.Submit(ctx, "0.0.1001", []byte(`2`))
	require.NoError(t, err)

	got := make(chan ledger.Message, 2)
	go l.Subscribe(ctx, "0.0.1001", msgs[0].ConsensusAt, func(m ledger.Message) { got <- m })

	select {
	case m := <-got:
		assert.Equal(t, uint64(2), m.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestLog_CreateTopic(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	first, err := l.CreateTopic(ctx, "jobs")
	require.NoError(t, err)
	second, err := l.CreateTopic(ctx, "receipts")
	require.NoError(t, err)

	assert.Equal(t, "0.0.1001", first)
	assert.Equal(t, "0.0.1002", second)
}
