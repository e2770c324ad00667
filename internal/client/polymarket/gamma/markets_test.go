package polymarketgamma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleMarkets = `[
  {
    "id": "512345",
    "conditionId": "0xabc",
    "question": "Will it rain?",
    "slug": "will-it-rain",
    "endDate": "2026-12-31T12:00:00Z",
    "outcomes": "[\"Yes\", \"No\"]",
    "outcomePrices": "[\"0.62\", \"0.38\"]",
    "volume": "1234.5",
    "liquidity": 99.5,
    "active": true,
    "closed": false,
    "tags": [{"id": 7, "label": "Weather", "slug": "weather"}]
  },
  {
    "id": 77,
    "conditionId": "0xdef",
    "question": "Plain arrays?",
    "outcomes": ["Up", "Down"],
    "outcomePrices": [0.1, 0.9],
    "volumeNum": 10,
    "volume": "bogus",
    "active": true
  }
]`

func TestListMarketsDecodesFlexibleFields(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleMarkets))
	}))
	defer srv.Close()

	active, closed := true, false
	c := NewClient(srv.Client(), srv.URL+"/", WithRateLimit(100, 1))
	items, err := c.ListMarkets(context.Background(), ListMarketsParams{
		Active: &active,
		Closed: &closed,
		Limit:  100,
		Offset: 200,
	})
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if gotQuery != "active=true&closed=false&limit=100&offset=200" {
		t.Fatalf("query=%s", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("len=%d want=2", len(items))
	}

	first := items[0]
	if first.ID != "512345" || first.ConditionID != "0xabc" {
		t.Fatalf("ids=%s %s", first.ID, first.ConditionID)
	}
	if len(first.Outcomes) != 2 || first.Outcomes[0].Name != "Yes" {
		t.Fatalf("outcomes=%v", first.Outcomes)
	}
	if priced := first.PricedOutcomes(); len(priced) != 2 || priced[1].Name != "No" || priced[1].Price != 0.38 {
		t.Fatalf("priced=%v", priced)
	}
	if len(first.OutcomePrices) != 2 || first.OutcomePrices[0] != 0.62 {
		t.Fatalf("prices=%v", first.OutcomePrices)
	}
	if first.VolumeValue() != 1234.5 || first.LiquidityValue() != 99.5 {
		t.Fatalf("volume=%v liquidity=%v", first.VolumeValue(), first.LiquidityValue())
	}
	if len(first.Tags) != 1 || first.Tags[0].ID != "7" {
		t.Fatalf("tags=%v", first.Tags)
	}
	if len(first.Raw) == 0 {
		t.Fatalf("raw json not kept")
	}
	if end := Time(first.EndDate); end == nil || end.Year() != 2026 {
		t.Fatalf("end=%v", end)
	}

	second := items[1]
	if second.ID != "77" || second.OutcomePrices[1] != 0.9 || second.VolumeValue() != 10 {
		t.Fatalf("second=%+v", second)
	}
}

func TestOutcomeObjectsAndCacheRoundTrip(t *testing.T) {
	body := `[{"conditionId":"0x9","question":"Q","outcomes":[{"name":"Yes","price":"0.7"},{"name":"No"}],"outcomePrices":[0.7,0.3]}]`
	items, err := decodeMarkets([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	priced := items[0].PricedOutcomes()
	if len(priced) != 2 || priced[0].Price != 0.7 || priced[1].Price != 0.3 {
		t.Fatalf("priced=%v", priced)
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back []Market
	if err := json.Unmarshal(encoded, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 1 || len(back[0].PricedOutcomes()) != 2 || len(back[0].Raw) == 0 {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestPricedOutcomesWithoutPrices(t *testing.T) {
	m := Market{Outcomes: Outcomes{{Name: "Yes"}, {Name: "No"}}}
	if got := m.PricedOutcomes(); len(got) != 0 {
		t.Fatalf("priced=%v want none", got)
	}
}

func TestListMarketsConditionIDs(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("condition_ids")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	items, err := c.ListMarkets(context.Background(), ListMarketsParams{ConditionIDs: []string{"0x1", "0x2"}})
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(items) != 0 || got != "0x1,0x2" {
		t.Fatalf("items=%d condition_ids=%q", len(items), got)
	}
}

func TestListMarketsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.ListMarkets(context.Background(), ListMarketsParams{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err=%v want APIError 502", err)
	}
}

func TestListMarketsCancelledWhileThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.ListMarkets(ctx, ListMarketsParams{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	cancel()
	if _, err := c.ListMarkets(ctx, ListMarketsParams{}); err == nil {
		t.Fatalf("expected limiter wait to fail on a cancelled context")
	}
}
