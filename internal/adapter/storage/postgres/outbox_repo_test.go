package postgres

import (
	"context"
	"testing"

	"wallet-ledger-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventOutboxRepo()

	w, err := domain.NewWallet(uuid.New())
	require.NoError(t, err)
	events := w.PullEvents()
	require.Len(t, events, 1)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO event_outbox").
		WithArgs(pgxmock.AnyArg(), "wallet.created", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), dbTx, events)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_Append_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventOutboxRepo()

	mock.ExpectBegin()
	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	// No events means no writes at all.
	err = repo.Append(context.Background(), dbTx, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
