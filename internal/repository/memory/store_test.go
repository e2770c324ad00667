package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palpiteiros/internal/models"
	"palpiteiros/internal/repository"
)

func TestUpsertMarketsKeepsSurrogateID(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.UpsertMarkets(ctx, []models.Market{
		{ConditionID: "0xa", Question: "A?", Active: true},
		{ConditionID: "0xb", Question: "B?", Active: true},
	}))
	first, err := s.GetMarketByConditionID(ctx, "0xa")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, s.UpsertMarket(ctx, &models.Market{ConditionID: "0xa", Question: "A2?", Active: true}))
	again, err := s.GetMarketByConditionID(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "A2?", again.Question)

	byID, err := s.GetMarketByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xa", byID.ConditionID)

	missing, err := s.GetMarketByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListActiveMarketsPagesByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	hi := decimal.NewFromInt(1000)
	lo := decimal.NewFromInt(10)
	require.NoError(t, s.UpsertMarkets(ctx, []models.Market{
		{ConditionID: "low", Active: true, Volume: &lo},
		{ConditionID: "high", Active: true, Volume: &hi},
		{ConditionID: "closed", Active: true, Closed: true, Volume: &hi},
		{ConditionID: "archived", Active: true, Archived: true},
		{ConditionID: "inactive", Active: false},
	}))
	out, err := s.ListActiveMarkets(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "low", out[0].ConditionID)
	assert.Equal(t, "high", out[1].ConditionID)

	first, err := s.ListActiveMarkets(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "low", first[0].ConditionID)

	next, err := s.ListActiveMarkets(ctx, first[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "high", next[0].ConditionID)

	done, err := s.ListActiveMarkets(ctx, next[0].ID, 1)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestInsertPricePointsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p1 := models.PriceHistoryPoint{MarketID: 1, PriceYes: 0.4, Timestamp: ts}
	p2 := models.PriceHistoryPoint{MarketID: 2, PriceYes: 0.5, Timestamp: ts}

	require.NoError(t, s.InsertPricePoints(ctx, []models.PriceHistoryPoint{p1}))

	err := s.InsertPricePoints(ctx, []models.PriceHistoryPoint{p2, p1})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	// whole batch rejected, so p2 is still insertable on its own
	require.NoError(t, s.InsertPricePoint(ctx, &p2))
	assert.ErrorIs(t, s.InsertPricePoint(ctx, &p1), repository.ErrDuplicate)

	out, err := s.ListPriceHistory(ctx, repository.ListPriceHistoryParams{
		MarketIDs: []uint64{1, 2},
		Since:     ts.Add(-time.Minute),
		Until:     ts,
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	none, err := s.ListPriceHistory(ctx, repository.ListPriceHistoryParams{MarketIDs: []uint64{1}, Since: ts.Add(time.Second)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := &models.NewsletterSubscription{Email: "a@example.com", Active: true, Frequency: models.FrequencyDaily, UnsubscribeToken: "t1"}
	require.NoError(t, s.CreateSubscription(ctx, sub))
	assert.NotZero(t, sub.ID)

	dup := &models.NewsletterSubscription{Email: "a@example.com", UnsubscribeToken: "t2"}
	assert.ErrorIs(t, s.CreateSubscription(ctx, dup), repository.ErrDuplicate)

	got, err := s.GetActiveSubscriptionByToken(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got.Active = false
	require.NoError(t, s.SaveSubscription(ctx, got))
	gone, err := s.GetActiveSubscriptionByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	list, err := s.ListActiveSubscriptions(ctx, models.FrequencyDaily)
	require.NoError(t, err)
	assert.Empty(t, list)

	now := time.Now().UTC()
	require.NoError(t, s.MarkSubscriptionSent(ctx, sub.ID, now))
	assert.ErrorIs(t, s.MarkSubscriptionSent(ctx, 42, now), repository.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	assert.Error(t, s.Ping(ctx))
	_, err := s.ListActiveMarkets(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
