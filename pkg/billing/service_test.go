package billing

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var subscriptionColumns = []string{
	"id", "organization_id", "plan", "seats_count", "status",
	"stripe_customer_id", "stripe_subscription_id",
	"current_period_start", "current_period_end", "created_at", "updated_at",
}

func TestGetSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, "")

	now := time.Now()
	rows := sqlmock.NewRows(subscriptionColumns).
		AddRow(1, 123, "business", 5, "active", "cus_1", "sub_1",
			now.AddDate(0, 0, -10), now.AddDate(0, 0, 20), now, now)
	mock.ExpectQuery("SELECT id, organization_id, plan").
		WithArgs(int64(123)).
		WillReturnRows(rows)

	sub, err := service.GetSubscription(context.Background(), 123)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "business", sub.Plan)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, 5, sub.SeatsCount)
}

func TestGetSubscription_NoneExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, "")

	mock.ExpectQuery("SELECT id, organization_id, plan").
		WithArgs(int64(123)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns))

	sub, err := service.GetSubscription(context.Background(), 123)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestCurrentPeriod_FromSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, "")

	now := time.Now()
	periodStart := now.AddDate(0, 0, -10)
	periodEnd := now.AddDate(0, 0, 20)
	rows := sqlmock.NewRows(subscriptionColumns).
		AddRow(1, 123, "business", 5, "active", "cus_1", "sub_1",
			periodStart, periodEnd, now, now)
	mock.ExpectQuery("SELECT id, organization_id, plan").
		WithArgs(int64(123)).
		WillReturnRows(rows)

	start, end, err := service.CurrentPeriod(context.Background(), 123)
	require.NoError(t, err)
	assert.WithinDuration(t, periodStart, start, time.Second)
	assert.WithinDuration(t, periodEnd, end, time.Second)
}

func TestCurrentPeriod_CalendarMonthFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, "")

	mock.ExpectQuery("SELECT id, organization_id, plan").
		WithArgs(int64(123)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns))

	start, end, err := service.CurrentPeriod(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, start.AddDate(0, 1, 0), end)
}

func TestUpsertSubscription_InvalidStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, "")

	err = service.UpsertSubscription(context.Background(), &OrganizationSubscription{
		OrganizationID: 123,
		Plan:           "business",
		Status:         "limbo",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid subscription status")
}

func TestSubscriptionStatusUsable(t *testing.T) {
	assert.True(t, StatusActive.Usable())
	assert.True(t, StatusTrialing.Usable())
	assert.True(t, StatusPastDue.Usable())
	assert.False(t, StatusCanceled.Usable())
	assert.False(t, StatusUnpaid.Usable())
	assert.False(t, StatusPaused.Usable())
	assert.False(t, StatusIncompleteExpired.Usable())
}
