package db

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wpre/internal/types"
)

func TestErrorLogRepository_RecordError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewErrorLogRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 1 && args[0] == types.MsgFutureTime
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.RecordError(context.Background(), types.MsgFutureTime))
	db.AssertExpectations(t)
}

func TestErrorLogRepository_RecordError_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewErrorLogRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.RecordError(context.Background(), "boom")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "failed to record error", appErr.Message)
}

func TestErrorLog_MirrorsToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewMemoryStore(nil)
	log := NewErrorLog(sink, logger)

	ctx := types.WithRequestID(context.Background(), "req-42")
	require.NoError(t, log.RecordError(ctx, types.MsgPastUnsupported))

	assert.Equal(t, []string{types.MsgPastUnsupported}, sink.Errors())
	assert.Contains(t, buf.String(), types.MsgPastUnsupported)
	assert.Contains(t, buf.String(), "req-42")
}

func TestErrorLog_NilSinkOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	log := NewErrorLog(nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, log.RecordError(context.Background(), "only logged"))
	assert.Contains(t, buf.String(), "only logged")
}
