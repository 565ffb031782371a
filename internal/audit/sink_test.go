package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
	"github.com/richardliu001/ledgerx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestSink(t *testing.T) (*Sink, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.FailedAttempt{}))
	log, _ := zap.NewDevelopment()
	return New(db, log.Sugar()), db
}

func TestSink_RecordWritesRow(t *testing.T) {
	sink, db := newTestSink(t)
	src := uuid.New()
	key := uuid.New()
	dst := uuid.New()

	sink.Record(context.Background(), Attempt{
		IdempotencyKey: key,
		Source:         &src,
		Destination:    dst,
		Amount:         500,
		Kind:           ledgerx.KindConflict,
		Cause:          errors.New("serialization_failure"),
		RetryCount:     10,
	})

	var rows []model.FailedAttempt
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].IdempotencyKey)
	assert.Equal(t, dst, rows[0].Destination)
	assert.Equal(t, string(ledgerx.KindConflict), rows[0].ErrorKind)
	assert.Equal(t, "serialization_failure", rows[0].ErrorDetail)
	assert.Equal(t, 10, rows[0].RetryCount)
}

func TestSink_RecordSwallowsWriteFailure(t *testing.T) {
	sink, db := newTestSink(t)
	// Drop the table so the insert fails; Record must not panic or
	// otherwise surface the error to the caller.
	require.NoError(t, db.Migrator().DropTable(&model.FailedAttempt{}))

	assert.NotPanics(t, func() {
		sink.Record(context.Background(), Attempt{
			IdempotencyKey: uuid.New(),
			Destination:    uuid.New(),
			Amount:         100,
			Kind:           ledgerx.KindConflict,
		})
	})
}
