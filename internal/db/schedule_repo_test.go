package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"daypass/internal/types"
)

func sqlContains(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

func TestScheduleRepository_Create(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)

	rec := &types.ScheduleRecord{
		ID:              "sch-1",
		SellerID:        "seller-1",
		ConfigurationID: "cfg-1",
		Channel:         types.ChannelSeller,
		RecipientName:   "Ada",
		RecipientEmail:  "ada@example.com",
		Guests:          2,
		Days:            3,
		DeliveryMethod:  types.DeliveryDirect,
		TargetTime:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO pass_schedules"), mock.MatchedBy(func(args []any) bool {
		landing, _ := args[9].(*string)
		created, _ := args[11].(*time.Time)
		return args[0] == "sch-1" && landing == nil && created == nil
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(context.Background(), rec))
	db.AssertExpectations(t)
}

func TestScheduleRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), "missing")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSchedule, appErr.Code)
	assert.Equal(t, "missing", appErr.Details["record_id"])
}

func TestScheduleRepository_LockForActivation_UsesRowLock(t *testing.T) {
	db := new(mockDBTX)
	repo := NewScheduleRepository(db)
	target := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	db.On("QueryRow", mock.Anything, sqlContains("FOR UPDATE"), mock.Anything).Return(&mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sch-1"
			*dest[6].(*int) = 2
			*dest[7].(*int) = 3
			*dest[10].(*time.Time) = target
			*dest[12].(*bool) = false
			*dest[15].(*int) = 1
			return nil
		},
	})

	rec, err := repo.LockForActivation(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "sch-1", rec.ID)
	assert.Equal(t, 2, rec.Guests)
	assert.Equal(t, 3, rec.Days)
	assert.Equal(t, target, rec.TargetTime)
	assert.Equal(t, 1, rec.RetryCount)
	db.AssertExpectations(t)
}

func TestScheduleRepository_MarkProcessed(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("first call flips the flag", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", mock.Anything, sqlContains("is_processed = false"), []any{"sch-1", at, "QR-ABCD-EFGH"}).
			Return(pgconn.NewCommandTag("UPDATE 1"), nil)

		err := NewScheduleRepository(db).MarkProcessed(context.Background(), "sch-1", "QR-ABCD-EFGH", at)
		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("already processed is a conflict", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(pgconn.NewCommandTag("UPDATE 0"), nil)

		err := NewScheduleRepository(db).MarkProcessed(context.Background(), "sch-1", "QR-X", at)
		assert.True(t, types.IsCode(err, types.ErrCodeConflictAlreadyProcessed))
	})

	t.Run("db error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(pgconn.CommandTag{}, errors.New("connection reset"))

		err := NewScheduleRepository(db).MarkProcessed(context.Background(), "sch-1", "QR-X", at)
		assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	})
}

func TestScheduleRepository_IncrementRetry(t *testing.T) {
	t.Run("returns new count", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, sqlContains("retry_count = retry_count + 1"), []any{"sch-1"}).
			Return(&mockRow{scanFn: func(dest ...any) error {
				*dest[0].(*int) = 2
				return nil
			}})

		n, err := NewScheduleRepository(db).IncrementRetry(context.Background(), "sch-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("processed record is a conflict", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanErr: pgx.ErrNoRows})

		_, err := NewScheduleRepository(db).IncrementRetry(context.Background(), "sch-1")
		assert.True(t, types.IsCode(err, types.ErrCodeConflictAlreadyProcessed))
	})
}

func TestScheduleRepository_MarkEscalated(t *testing.T) {
	at := time.Now().UTC()

	db := new(mockDBTX)
	db.On("Exec", mock.Anything, sqlContains("escalated_at IS NULL"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()
	db.On("Exec", mock.Anything, sqlContains("escalated_at IS NULL"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil).Once()
	repo := NewScheduleRepository(db)

	first, err := repo.MarkEscalated(context.Background(), "sch-1", at)
	require.NoError(t, err)
	second, err := repo.MarkEscalated(context.Background(), "sch-1", at)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestScheduleRepository_Delete_OnlyUnprocessed(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, sqlContains("DELETE FROM pass_schedules WHERE id = $1 AND is_processed = false"), []any{"sch-1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, NewScheduleRepository(db).Delete(context.Background(), "sch-1"))
	db.AssertExpectations(t)
}

func TestScheduleRepository_ListOverdue(t *testing.T) {
	cutoff := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	db := new(mockDBTX)
	db.On("Query", mock.Anything, sqlContains("escalated_at IS NULL"), []any{cutoff, 25}).
		Return(newMockRows("a", "b"), nil)

	ids, err := NewScheduleRepository(db).ListOverdue(context.Background(), cutoff, 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
