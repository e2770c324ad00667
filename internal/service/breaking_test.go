package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"palpiteiros/internal/apperr"
	"palpiteiros/internal/cache"
	"palpiteiros/internal/models"
	"palpiteiros/internal/repository/memory"
	"palpiteiros/internal/stats"
)

var rankNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// seedMarket stores an active market and one point per price, an hour apart, ending at rankNow.
func seedMarket(t *testing.T, store *memory.Store, conditionID string, prices ...float64) uint64 {
	t.Helper()
	ctx := context.Background()
	m := models.Market{
		ConditionID:  conditionID,
		Question:     "Will " + conditionID + " happen?",
		Outcomes:     mustJSON([]models.Outcome{{Name: "Yes", Price: 0.5}, {Name: "No", Price: 0.5}}),
		Active:       true,
		LastSyncedAt: rankNow,
	}
	if err := store.UpsertMarket(ctx, &m); err != nil {
		t.Fatalf("UpsertMarket: %v", err)
	}
	stored, err := store.GetMarketByConditionID(ctx, conditionID)
	if err != nil || stored == nil {
		t.Fatalf("GetMarketByConditionID: %v", err)
	}
	for i, p := range prices {
		point := models.PriceHistoryPoint{
			MarketID:    stored.ID,
			ConditionID: conditionID,
			PriceYes:    p,
			PriceNo:     1 - p,
			Timestamp:   rankNow.Add(-time.Duration(len(prices)-1-i) * time.Hour),
		}
		if err := store.InsertPricePoint(ctx, &point); err != nil {
			t.Fatalf("InsertPricePoint: %v", err)
		}
	}
	return stored.ID
}

func newRanker(store *memory.Store) *BreakingMarketsService {
	return &BreakingMarketsService{Store: store, Now: fixedNow(rankNow)}
}

func TestRankOrdersByScoreThenID(t *testing.T) {
	store := memory.New()
	a := seedMarket(t, store, "0xa", 0.5, 0.6)
	seedMarket(t, store, "0xb", 0.5, 0.51)
	c := seedMarket(t, store, "0xc", 0.5, 0.8)
	d := seedMarket(t, store, "0xd", 0.5, 0.6)
	seedMarket(t, store, "0xe", 0.9)

	got, err := newRanker(store).Rank(context.Background(), DefaultParams())
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d want=3: %+v", len(got), got)
	}
	want := []uint64{c, a, d}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d id=%d want=%d", i, got[i].ID, id)
		}
	}
	if got[0].Trend != stats.TrendUp || got[0].CurrentPrice != 0.8 {
		t.Fatalf("top=%+v", got[0])
	}
	if len(got[0].PriceHistory) != 2 || len(got[0].Outcomes) != 2 {
		t.Fatalf("history=%d outcomes=%d", len(got[0].PriceHistory), len(got[0].Outcomes))
	}

	params := DefaultParams()
	params.Limit = 2
	top, err := newRanker(store).Rank(context.Background(), params)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(top) != 2 || top[0].ID != c || top[1].ID != a {
		t.Fatalf("top=%v", top)
	}
}

func TestRankScoresEveryActiveMarket(t *testing.T) {
	store := memory.New()
	for i := 0; i < 520; i++ {
		seedMarket(t, store, "0xbulk"+strconv.Itoa(i), 0.50, 0.53)
	}
	mover := seedMarket(t, store, "0xmover", 0.20, 0.80)

	params := DefaultParams()
	params.MinPriceChange = 0.01
	for _, pageSize := range []int{0, 7, 521} {
		ranker := newRanker(store)
		ranker.CandidatePageSize = pageSize
		got, err := ranker.Rank(context.Background(), params)
		if err != nil {
			t.Fatalf("page=%d Rank: %v", pageSize, err)
		}
		if len(got) != params.Limit {
			t.Fatalf("page=%d len=%d want=%d", pageSize, len(got), params.Limit)
		}
		if got[0].ID != mover {
			t.Fatalf("page=%d top id=%d want=%d", pageSize, got[0].ID, mover)
		}
		for i := 2; i < len(got); i++ {
			if got[i-1].ID >= got[i].ID {
				t.Fatalf("page=%d equal scores not ordered by id at %d", pageSize, i)
			}
		}
	}
}

func TestRankExplicitMarketBypassesThreshold(t *testing.T) {
	store := memory.New()
	b := seedMarket(t, store, "0xb", 0.5, 0.51)

	for _, ref := range []string{"0xb", strconv.FormatUint(b, 10)} {
		params := DefaultParams()
		params.MarketID = ref
		got, err := newRanker(store).Rank(context.Background(), params)
		if err != nil {
			t.Fatalf("Rank(%s): %v", ref, err)
		}
		if len(got) != 1 || got[0].ID != b {
			t.Fatalf("Rank(%s)=%v", ref, got)
		}
	}

	params := DefaultParams()
	params.MarketID = "0xunknown"
	got, err := newRanker(store).Rank(context.Background(), params)
	if err != nil || len(got) != 0 {
		t.Fatalf("unknown market: got=%v err=%v", got, err)
	}
}

func TestRankIgnoresPointsOutsideWindow(t *testing.T) {
	store := memory.New()
	seedMarket(t, store, "0xold", 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.8, 0.8)

	params := DefaultParams()
	params.TimeRangeHours = 1
	got, err := newRanker(store).Rank(context.Background(), params)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("flat last hour should not rank: %+v", got)
	}
}

func TestRankSamplesLongHistory(t *testing.T) {
	store := memory.New()
	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = 0.3 + float64(i)*0.005
	}
	seedMarket(t, store, "0xlong", prices...)

	params := DefaultParams()
	params.TimeRangeHours = 168
	got, err := newRanker(store).Rank(context.Background(), params)
	if err != nil || len(got) != 1 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	h := got[0].PriceHistory
	if len(h) != stats.DefaultSampleSize {
		t.Fatalf("history=%d want=%d", len(h), stats.DefaultSampleSize)
	}
	if h[0].PriceYes != prices[0] || h[len(h)-1].PriceYes != prices[len(prices)-1] {
		t.Fatalf("sample must keep endpoints: first=%v last=%v", h[0].PriceYes, h[len(h)-1].PriceYes)
	}
}

func TestRankValidatesBeforeIO(t *testing.T) {
	svc := &BreakingMarketsService{}
	cases := []Params{
		{Limit: 0, MinPriceChange: 0.05, TimeRangeHours: 24},
		{Limit: 101, MinPriceChange: 0.05, TimeRangeHours: 24},
		{Limit: 10, MinPriceChange: 1.5, TimeRangeHours: 24},
		{Limit: 10, MinPriceChange: -0.1, TimeRangeHours: 24},
		{Limit: 10, MinPriceChange: 0.05, TimeRangeHours: 0},
		{Limit: 10, MinPriceChange: 0.05, TimeRangeHours: 169},
	}
	for _, p := range cases {
		_, err := svc.Rank(context.Background(), p)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("params=%+v err=%v want ValidationError", p, err)
		}
	}
}

func TestRankServesFromCache(t *testing.T) {
	store := memory.New()
	seedMarket(t, store, "0xa", 0.5, 0.7)
	svc := newRanker(store)
	svc.Cache = cache.New(cache.NewMemoryStore(), nil)
	svc.CacheTTL = time.Minute

	first, err := svc.Rank(context.Background(), DefaultParams())
	if err != nil || len(first) != 1 {
		t.Fatalf("first=%v err=%v", first, err)
	}
	seedMarket(t, store, "0xb", 0.2, 0.9)
	second, err := svc.Rank(context.Background(), DefaultParams())
	if err != nil || len(second) != 1 {
		t.Fatalf("cached result expected, got=%d err=%v", len(second), err)
	}

	params := DefaultParams()
	params.Limit = 5
	fresh, err := svc.Rank(context.Background(), params)
	if err != nil || len(fresh) != 2 {
		t.Fatalf("different params must recompute, got=%d err=%v", len(fresh), err)
	}
}
