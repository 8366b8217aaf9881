package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // :memory: es una base distinta por conexión
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSQLite(db))
	return db
}

func deadLetter(key string, createdAt time.Time) sharedDomain.DeadLetter {
	return sharedDomain.DeadLetter{
		ID:        uuid.New(),
		EventID:   "evt-" + key,
		Topic:     "order.events",
		Key:       key,
		Payload:   []byte(`{"amount":1,"identifier":"` + key + `","type":"order.created"}`),
		Attempts:  3,
		LastError: "send failed (retryable): leader not available",
		Retryable: true,
		CreatedAt: createdAt,
	}
}

func TestDeadLetterRepoSQLite_SaveAndFetch(t *testing.T) {
	repo := NewDeadLetterRepoSQLite(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	second := deadLetter("B", base.Add(time.Minute))
	first := deadLetter("A", base)
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "A", pending[0].Key)
	assert.Equal(t, "evt-A", pending[0].EventID, "el id del evento se conserva para el replay")
	assert.Equal(t, first.Payload, pending[0].Payload)
	assert.Equal(t, 3, pending[0].Attempts)
	assert.True(t, pending[0].Retryable)
	assert.WithinDuration(t, base, pending[0].CreatedAt, time.Second)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestDeadLetterRepoSQLite_MarkReplayed(t *testing.T) {
	repo := NewDeadLetterRepoSQLite(newTestDB(t))
	ctx := context.Background()

	dl := deadLetter("A", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, dl))
	require.NoError(t, repo.MarkReplayed(ctx, dl.ID))

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Error(t, repo.MarkReplayed(ctx, uuid.New()))
}

func TestDeadLetterRepoSQLite_FetchRespectsLimit(t *testing.T) {
	repo := NewDeadLetterRepoSQLite(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for i, key := range []string{"A", "B", "C"} {
		require.NoError(t, repo.Save(ctx, deadLetter(key, now.Add(time.Duration(i)*time.Second))))
	}

	pending, err := repo.FetchPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
