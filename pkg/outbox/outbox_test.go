package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:         9,
		CustomerID: 3,
		Status:     enums.OrderStatusPending,
		TotalPrice: decimal.RequireFromString("59.98"),
		Items: []models.OrderItem{{
			ProductID:  1,
			Quantity:   2,
			UnitPrice:  decimal.RequireFromString("29.99"),
			TotalPrice: decimal.RequireFromString("59.98"),
		}},
	}
}

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, OrderCreated(sampleOrder()))
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)
	assert.Equal(t, enums.AggregateOrder, rows[0].AggregateType)
	assert.Equal(t, "9", rows[0].AggregateID)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, int64(3), env.Actor.UserID)

	var data OrderCreatedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.TotalPrice.Equal(decimal.RequireFromString("59.98")))
	require.Len(t, data.Items, 1)
	assert.Equal(t, 2, data.Items[0].Quantity)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, OrderCreated(sampleOrder())); err != nil {
			return err
		}
		return errors.New("gateway down")
	})
	require.Error(t, err)

	count, err := NewRepository(db).CountPending()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEmitValidatesEvent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, OrderCreated(sampleOrder())))
	require.Error(t, svc.Emit(ctx, db, DomainEvent{EventType: "order.shipped", AggregateType: enums.AggregateOrder, AggregateID: "1"}))
	require.Error(t, svc.Emit(ctx, db, DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder}))
}

func TestOrderSettled(t *testing.T) {
	order := sampleOrder()
	_, ok := OrderSettled(order, enums.OrderStatusPending, "evt_1")
	assert.False(t, ok, "pending orders have no settlement event")

	order.Status = enums.OrderStatusPaid
	event, ok := OrderSettled(order, enums.OrderStatusPending, "evt_1")
	require.True(t, ok)
	assert.Equal(t, enums.EventOrderPaid, event.EventType)
	data := event.Data.(OrderSettledEvent)
	assert.Equal(t, enums.OrderStatusPending, data.PreviousStatus)
	assert.Equal(t, "evt_1", data.ProviderEventID)
}

func TestFetchAndMark(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, db, OrderCreated(sampleOrder())))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("boom")))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("boom again")))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1, "published and exhausted rows are skipped")

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "attempt_count = ?", 2).Error)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "boom again", *failed.LastError)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)
}

func TestMarkFailedKeepsLastErrorValidUTF8(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, NewService(repo, nil).Emit(context.Background(), db, OrderCreated(sampleOrder())))

	rows, err := repo.FetchUnpublishedForPublish(db, 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// One ASCII byte shifts every two-byte rune across the cut.
	long := "x" + strings.Repeat("é", maxLastErrorLen)
	require.NoError(t, repo.MarkFailedTx(db, rows[0].ID, errors.New(long)))

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", rows[0].ID).Error)
	require.NotNil(t, stored.LastError)
	assert.True(t, utf8.ValidString(*stored.LastError))
	assert.LessOrEqual(t, len(*stored.LastError), maxLastErrorLen)
	assert.Equal(t, 1, stored.AttemptCount)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short", 10))
	assert.Equal(t, "ab", truncateError("abé", 3), "a split rune is dropped")
	assert.Equal(t, "abé", truncateError("abé", 4))
	assert.Equal(t, "ok", truncateError("ok\xff", 10))
}
