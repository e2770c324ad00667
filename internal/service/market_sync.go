package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"palpiteiros/internal/apperr"
	"palpiteiros/internal/cache"
	polymarketgamma "palpiteiros/internal/client/polymarket/gamma"
	"palpiteiros/internal/models"
	"palpiteiros/internal/repository"
)

const syncScopeMarkets = "markets"

// MarketSource is the market-listing read API.
type MarketSource interface {
	ListMarkets(ctx context.Context, params polymarketgamma.ListMarketsParams) ([]polymarketgamma.Market, error)
}

type MarketSyncStore interface {
	repository.MarketRepository
	repository.PriceHistoryRepository
	repository.SyncStateRepository
}

type MarketSyncService struct {
	Store  MarketSyncStore
	Gamma  MarketSource
	Cache  *cache.Cache
	Logger *zap.Logger

	PageLimit int
	MaxPages  int
	ChunkSize int
	// Bucket truncates point timestamps so retries inside one tick collide.
	Bucket   time.Duration
	CacheTTL time.Duration

	Now func() time.Time
}

type SyncOptions struct {
	ConditionIDs []string `json:"condition_ids" form:"condition_ids"`
}

type SyncResult struct {
	Scope       string                `json:"scope"`
	Fetched     int                   `json:"fetched"`
	Upserted    int                   `json:"upserted"`
	PricePoints int                   `json:"price_points"`
	Skipped     int                   `json:"skipped"`
	Failed      int                   `json:"failed"`
	NoPrice     int                   `json:"no_price"`
	Errors      []apperr.BatchFailure `json:"errors"`
	DurationMS  int64                 `json:"duration_ms"`
	// NextOffset is where the next full sync starts; 0 after the listing was read to its end.
	NextOffset  *int                  `json:"next_offset,omitempty"`
}

func (s *MarketSyncService) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	started := time.Now()
	result := SyncResult{Scope: syncScopeMarkets, Errors: []apperr.BatchFailure{}}
	if s == nil || s.Store == nil {
		return result, &apperr.ConfigurationError{Key: "db", Message: "market store not configured"}
	}
	if s.Gamma == nil {
		return result, &apperr.ConfigurationError{Key: "gamma.base_url", Message: "gamma client not configured"}
	}
	now := s.now()

	fetched, fetchFailures := s.fetch(ctx, opts, &result)
	result.Fetched = len(fetched)
	result.Errors = append(result.Errors, fetchFailures...)
	if len(fetched) == 0 && len(fetchFailures) > 0 {
		err := apperr.Upstream("gamma list markets", errors.New(fetchFailures[0].String()))
		s.writeSyncState(ctx, now, &result, err)
		result.DurationMS = time.Since(started).Milliseconds()
		return result, err
	}

	markets := mapGammaMarkets(fetched, now)
	upserted := s.upsertMarkets(ctx, markets, &result)

	points := s.buildPoints(upserted, now, &result)
	s.insertPoints(ctx, points, &result)

	s.writeSyncState(ctx, now, &result, nil)
	result.DurationMS = time.Since(started).Milliseconds()
	if s.Logger != nil {
		s.Logger.Info("market sync done",
			zap.Int("fetched", result.Fetched),
			zap.Int("upserted", result.Upserted),
			zap.Int("price_points", result.PricePoints),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Int("no_price", result.NoPrice),
			zap.Int64("duration_ms", result.DurationMS),
		)
	}
	return result, nil
}

// fetch returns the de-duplicated markets of every successful call. A failing page
// ends paging; a failing chunk is recorded and the next chunk still runs.
// Full listings resume at the stored cursor and wrap to 0 on a short page.
func (s *MarketSyncService) fetch(ctx context.Context, opts SyncOptions, result *SyncResult) ([]polymarketgamma.Market, []apperr.BatchFailure) {
	var out []polymarketgamma.Market
	var failures []apperr.BatchFailure
	seen := map[string]struct{}{}
	add := func(items []polymarketgamma.Market) {
		for _, m := range items {
			cid := strings.TrimSpace(m.ConditionID)
			if cid == "" {
				continue
			}
			if _, ok := seen[cid]; ok {
				continue
			}
			seen[cid] = struct{}{}
			out = append(out, m)
		}
	}

	ids := cleanStrings(opts.ConditionIDs)
	if len(ids) > 0 {
		for i, chunk := range chunkStrings(ids, s.chunkSize()) {
			if err := ctx.Err(); err != nil {
				failures = append(failures, apperr.Failure(fmt.Sprintf("chunk %d", i), err))
				break
			}
			items, err := s.listMarkets(ctx, polymarketgamma.ListMarketsParams{ConditionIDs: chunk})
			if err != nil {
				op := fmt.Sprintf("chunk %d (%d ids)", i, len(chunk))
				s.warn("gamma chunk failed", zap.String("op", op), zap.Error(err))
				failures = append(failures, apperr.Failure(op, apperr.Upstream("gamma list markets", err)))
				continue
			}
			add(items)
		}
		return out, failures
	}

	active, closed := true, false
	limit := s.pageLimit()
	offset := s.resumeOffset(ctx)
	next := 0
	for page := 0; page < s.maxPages(); page++ {
		items, err := s.listMarkets(ctx, polymarketgamma.ListMarketsParams{
			Active: &active,
			Closed: &closed,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			op := fmt.Sprintf("page %d (offset %d)", page, offset)
			s.warn("gamma page failed", zap.String("op", op), zap.Error(err))
			failures = append(failures, apperr.Failure(op, apperr.Upstream("gamma list markets", err)))
			next = offset
			break
		}
		add(items)
		if len(items) < limit {
			next = 0
			break
		}
		offset += limit
		next = offset
	}
	result.NextOffset = &next
	return out, failures
}

func (s *MarketSyncService) resumeOffset(ctx context.Context) int {
	state, err := s.Store.GetSyncState(ctx, syncScopeMarkets)
	if err != nil {
		s.warn("load sync cursor failed", zap.Error(err))
		return 0
	}
	if state == nil || state.Cursor == nil {
		return 0
	}
	offset, err := strconv.Atoi(*state.Cursor)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func (s *MarketSyncService) listMarkets(ctx context.Context, params polymarketgamma.ListMarketsParams) ([]polymarketgamma.Market, error) {
	key := gammaCacheKey(params)
	return cache.GetOrCompute(ctx, s.Cache, key, s.CacheTTL, func(ctx context.Context) ([]polymarketgamma.Market, error) {
		return s.Gamma.ListMarkets(ctx, params)
	})
}

func gammaCacheKey(p polymarketgamma.ListMarketsParams) string {
	var b strings.Builder
	b.WriteString("gamma:markets")
	if p.Active != nil {
		fmt.Fprintf(&b, ":active=%t", *p.Active)
	}
	if p.Closed != nil {
		fmt.Fprintf(&b, ":closed=%t", *p.Closed)
	}
	fmt.Fprintf(&b, ":limit=%d:offset=%d", p.Limit, p.Offset)
	if len(p.ConditionIDs) > 0 {
		b.WriteString(":ids=")
		b.WriteString(strings.Join(p.ConditionIDs, ","))
	}
	return b.String()
}

// upsertMarkets tries one batch first and falls back to per-row writes when it fails.
// It returns the stored rows, surrogate ids included.
func (s *MarketSyncService) upsertMarkets(ctx context.Context, markets []models.Market, result *SyncResult) []models.Market {
	if len(markets) == 0 {
		return nil
	}
	ok := make([]string, 0, len(markets))
	if err := s.Store.UpsertMarkets(ctx, markets); err != nil {
		s.warn("market batch upsert failed, retrying per row", zap.Int("rows", len(markets)), zap.Error(err))
		for i := range markets {
			m := markets[i]
			if err := s.Store.UpsertMarket(ctx, &m); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, apperr.Failure("market "+m.ConditionID, err))
				continue
			}
			ok = append(ok, m.ConditionID)
		}
	} else {
		for _, m := range markets {
			ok = append(ok, m.ConditionID)
		}
	}
	result.Upserted = len(ok)
	if len(ok) == 0 {
		return nil
	}

	stored, err := s.Store.FindMarketsByConditionIDs(ctx, ok)
	if err != nil {
		result.Errors = append(result.Errors, apperr.Failure("reload markets", err))
		return nil
	}
	return stored
}

func (s *MarketSyncService) buildPoints(markets []models.Market, now time.Time, result *SyncResult) []models.PriceHistoryPoint {
	ts := now
	if s.Bucket > 0 {
		ts = now.Truncate(s.Bucket)
	}
	points := make([]models.PriceHistoryPoint, 0, len(markets))
	for _, m := range markets {
		yes, no, ok := models.YesNoPrices(m.OutcomeList())
		if !ok {
			result.NoPrice++
			continue
		}
		points = append(points, models.PriceHistoryPoint{
			MarketID:    m.ID,
			ConditionID: m.ConditionID,
			PriceYes:    yes,
			PriceNo:     no,
			Volume:      m.Volume,
			Liquidity:   m.Liquidity,
			Timestamp:   ts,
		})
	}
	return points
}

// insertPoints writes the batch, then one row at a time when the batch fails.
// Duplicates of an existing (market, timestamp) are skipped.
func (s *MarketSyncService) insertPoints(ctx context.Context, points []models.PriceHistoryPoint, result *SyncResult) {
	if len(points) == 0 {
		return
	}
	err := s.Store.InsertPricePoints(ctx, points)
	if err == nil {
		result.PricePoints += len(points)
		return
	}
	s.warn("price point batch insert failed, retrying per row", zap.Int("rows", len(points)), zap.Error(err))
	for i := range points {
		p := points[i]
		err := s.Store.InsertPricePoint(ctx, &p)
		switch {
		case err == nil:
			result.PricePoints++
		case errors.Is(err, repository.ErrDuplicate):
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, apperr.Failure("price point "+p.ConditionID, err))
		}
	}
}

func (s *MarketSyncService) writeSyncState(ctx context.Context, now time.Time, result *SyncResult, runErr error) {
	state := &models.SyncState{
		Scope:         syncScopeMarkets,
		LastAttemptAt: &now,
		StatsJSON: statsJSON(map[string]int{
			"fetched":      result.Fetched,
			"upserted":     result.Upserted,
			"price_points": result.PricePoints,
			"skipped":      result.Skipped,
			"failed":       result.Failed,
			"no_price":     result.NoPrice,
		}),
	}
	prev, err := s.Store.GetSyncState(ctx, syncScopeMarkets)
	if err != nil {
		prev = nil
	}
	switch {
	case result.NextOffset != nil:
		state.Cursor = strPtr(strconv.Itoa(*result.NextOffset))
	case prev != nil:
		state.Cursor = prev.Cursor
	}
	if runErr != nil {
		state.LastError = strPtr(runErr.Error())
		if prev != nil {
			state.LastSuccessAt = prev.LastSuccessAt
		}
	} else {
		state.LastSuccessAt = &now
		if len(result.Errors) > 0 {
			state.LastError = strPtr(result.Errors[0].String())
		}
	}
	if err := s.Store.SaveSyncState(ctx, state); err != nil {
		s.warn("save sync state failed", zap.Error(err))
	}
}

func mapGammaMarkets(items []polymarketgamma.Market, now time.Time) []models.Market {
	out := make([]models.Market, 0, len(items))
	for _, item := range items {
		priced := item.PricedOutcomes()
		outcomes := make([]models.Outcome, 0, len(priced))
		for _, o := range priced {
			outcomes = append(outcomes, models.Outcome{Name: o.Name, Price: o.Price})
		}
		tags := make([]models.MarketTag, 0, len(item.Tags))
		for _, t := range item.Tags {
			tags = append(tags, models.MarketTag{Label: t.Label, Slug: t.Slug})
		}
		image := item.Image
		if image == "" {
			image = item.Icon
		}
		market := models.Market{
			ConditionID:  strings.TrimSpace(item.ConditionID),
			ExternalID:   strPtr(string(item.ID)),
			Question:     item.Question,
			Description:  strPtr(item.Description),
			Slug:         strPtr(item.Slug),
			StartDate:    polymarketgamma.Time(item.StartDate),
			EndDate:      polymarketgamma.Time(item.EndDate),
			Outcomes:     mustJSON(outcomes),
			Volume:       decimalPtr(item.VolumeValue()),
			Liquidity:    decimalPtr(item.LiquidityValue()),
			Active:       item.Active,
			Closed:       item.Closed,
			Archived:     item.Archived,
			Category:     strPtr(item.Category),
			Tags:         mustJSON(tags),
			ImageURL:     strPtr(image),
			LastSyncedAt: now,
			RawJSON:      rawJSON(item.Raw),
		}
		out = append(out, market)
	}
	return out
}

func (s *MarketSyncService) chunkSize() int {
	if s.ChunkSize <= 0 {
		return 50
	}
	return s.ChunkSize
}

func (s *MarketSyncService) pageLimit() int {
	if s.PageLimit <= 0 {
		return 100
	}
	return s.PageLimit
}

func (s *MarketSyncService) maxPages() int {
	if s.MaxPages <= 0 {
		return 5
	}
	return s.MaxPages
}

func (s *MarketSyncService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MarketSyncService) warn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) <= size {
		return [][]string{items}
	}
	chunks := make([][]string, 0, (len(items)/size)+1)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func decimalPtr(value float64) *decimal.Decimal {
	if value == 0 {
		return nil
	}
	val := decimal.NewFromFloat(value)
	return &val
}

func decimalFloat(v *decimal.Decimal) float64 {
	if v == nil {
		return 0
	}
	return v.InexactFloat64()
}

func statsJSON(stats map[string]int) datatypes.JSON {
	if len(stats) == 0 {
		return datatypes.JSON([]byte("null"))
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(payload)
}

func rawJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
