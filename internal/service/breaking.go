package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"palpiteiros/internal/apperr"
	"palpiteiros/internal/cache"
	"palpiteiros/internal/models"
	"palpiteiros/internal/repository"
	"palpiteiros/internal/stats"
)

const (
	DefaultBreakingLimit   = 20
	DefaultMinPriceChange  = 0.05
	DefaultTimeRangeHours  = 24
	defaultCandidatePage   = 500
	historyFetchChunk      = 500
	maxBreakingLimit       = 100
	maxBreakingWindowHours = 168
)

type BreakingStore interface {
	repository.MarketRepository
	repository.PriceHistoryRepository
}

type BreakingMarketsService struct {
	Store  BreakingStore
	Cache  *cache.Cache
	Logger *zap.Logger

	CacheTTL time.Duration
	// CandidatePageSize is how many active markets are scored per store round trip.
	CandidatePageSize int
	HistoryPoints     int

	Now func() time.Time
}

type Params struct {
	Limit          int     `json:"limit" form:"limit"`
	MinPriceChange float64 `json:"min_price_change" form:"min_price_change"`
	TimeRangeHours int     `json:"time_range_hours" form:"time_range_hours"`
	MarketID       string  `json:"market_id" form:"market_id"`
}

func DefaultParams() Params {
	return Params{
		Limit:          DefaultBreakingLimit,
		MinPriceChange: DefaultMinPriceChange,
		TimeRangeHours: DefaultTimeRangeHours,
	}
}

func (p Params) Validate() error {
	if p.Limit < 1 || p.Limit > maxBreakingLimit {
		return apperr.Validation("limit", "must be between 1 and %d", maxBreakingLimit)
	}
	if math.IsNaN(p.MinPriceChange) || p.MinPriceChange < 0 || p.MinPriceChange > 1 {
		return apperr.Validation("min_price_change", "must be between 0 and 1")
	}
	if p.TimeRangeHours < 1 || p.TimeRangeHours > maxBreakingWindowHours {
		return apperr.Validation("time_range_hours", "must be between 1 and %d", maxBreakingWindowHours)
	}
	return nil
}

func (p Params) cacheKey() string {
	return fmt.Sprintf("breaking:l=%d:m=%g:h=%d:id=%s", p.Limit, p.MinPriceChange, p.TimeRangeHours, p.MarketID)
}

type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	PriceYes  float64   `json:"price_yes"`
	PriceNo   float64   `json:"price_no"`
	Volume    float64   `json:"volume"`
}

type BreakingMarket struct {
	ID          uint64           `json:"id"`
	ConditionID string           `json:"condition_id"`
	Question    string           `json:"question"`
	Description *string          `json:"description"`
	Slug        *string          `json:"slug"`
	Category    *string          `json:"category"`
	ImageURL    *string          `json:"image_url"`
	EndDate     *time.Time       `json:"end_date"`
	Outcomes    []models.Outcome `json:"outcomes"`
	Volume      float64          `json:"volume"`
	Liquidity   float64          `json:"liquidity"`
	Active      bool             `json:"active"`
	Closed      bool             `json:"closed"`

	CurrentPrice        float64     `json:"current_price"`
	PriceChangePercent  float64     `json:"price_change_percent"`
	VolumeChangePercent float64     `json:"volume_change_percent"`
	PriceHigh           float64     `json:"price_high"`
	PriceLow            float64     `json:"price_low"`
	VolatilityIndex     float64     `json:"volatility_index"`
	MovementScore       float64     `json:"movement_score"`
	Trend               stats.Trend `json:"trend"`

	PriceHistory []HistoryPoint `json:"price_history"`
}

// Rank validates params before touching the store, then serves from cache when possible.
func (s *BreakingMarketsService) Rank(ctx context.Context, params Params) ([]BreakingMarket, error) {
	params.MarketID = strings.TrimSpace(params.MarketID)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if s == nil || s.Store == nil {
		return nil, &apperr.ConfigurationError{Key: "db", Message: "market store not configured"}
	}
	return cache.GetOrCompute(ctx, s.Cache, params.cacheKey(), s.CacheTTL, func(ctx context.Context) ([]BreakingMarket, error) {
		return s.rank(ctx, params)
	})
}

func (s *BreakingMarketsService) rank(ctx context.Context, params Params) ([]BreakingMarket, error) {
	now := s.now()
	since := now.Add(-time.Duration(params.TimeRangeHours) * time.Hour)
	explicit := params.MarketID != ""

	out := make([]BreakingMarket, 0)
	scanned := 0
	score := func(page []models.Market) error {
		scanned += len(page)
		grouped, err := s.history(ctx, page, since, now)
		if err != nil {
			return apperr.Upstream("load price history", err)
		}
		for _, m := range page {
			points := grouped[m.ID]
			if len(points) < 2 {
				continue
			}
			snap, ok := stats.Compute(points)
			if !ok {
				continue
			}
			if !explicit && math.Abs(snap.PriceChangePercent) < params.MinPriceChange {
				continue
			}
			out = append(out, s.toBreaking(m, snap, points))
		}
		return nil
	}

	if explicit {
		m, err := s.lookup(ctx, params.MarketID)
		if err != nil {
			return nil, apperr.Upstream("load markets", err)
		}
		if m != nil {
			if err := score([]models.Market{*m}); err != nil {
				return nil, err
			}
		}
	} else if err := s.eachActivePage(ctx, score); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MovementScore != out[j].MovementScore {
			return out[i].MovementScore > out[j].MovementScore
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	if s.Logger != nil {
		s.Logger.Debug("breaking markets ranked",
			zap.Int("candidates", scanned),
			zap.Int("ranked", len(out)),
			zap.Int("window_hours", params.TimeRangeHours),
		)
	}
	return out, nil
}

// eachActivePage walks every active market in id order. Ranking happens after the
// walk, so no market is dropped before it is scored.
func (s *BreakingMarketsService) eachActivePage(ctx context.Context, fn func([]models.Market) error) error {
	size := s.CandidatePageSize
	if size <= 0 {
		size = defaultCandidatePage
	}
	var afterID uint64
	for {
		page, err := s.Store.ListActiveMarkets(ctx, afterID, size)
		if err != nil {
			return apperr.Upstream("load markets", err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		last := page[len(page)-1].ID
		if len(page) < size || last <= afterID {
			return nil
		}
		afterID = last
	}
}

// lookup resolves ref as a surrogate id first, then as a condition id.
func (s *BreakingMarketsService) lookup(ctx context.Context, ref string) (*models.Market, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		m, err := s.Store.GetMarketByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
	}
	return s.Store.GetMarketByConditionID(ctx, ref)
}

func (s *BreakingMarketsService) history(ctx context.Context, markets []models.Market, since, until time.Time) (map[uint64][]models.PriceHistoryPoint, error) {
	ids := make([]uint64, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	grouped := make(map[uint64][]models.PriceHistoryPoint, len(markets))
	for start := 0; start < len(ids); start += historyFetchChunk {
		end := start + historyFetchChunk
		if end > len(ids) {
			end = len(ids)
		}
		points, err := s.Store.ListPriceHistory(ctx, repository.ListPriceHistoryParams{
			MarketIDs: ids[start:end],
			Since:     since,
			Until:     until,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			grouped[p.MarketID] = append(grouped[p.MarketID], p)
		}
	}
	return grouped, nil
}

func (s *BreakingMarketsService) toBreaking(m models.Market, snap stats.Snapshot, points []models.PriceHistoryPoint) BreakingMarket {
	n := s.HistoryPoints
	if n <= 0 {
		n = stats.DefaultSampleSize
	}
	sampled := stats.Sample(points, n)
	history := make([]HistoryPoint, len(sampled))
	for i, p := range sampled {
		history[i] = HistoryPoint{
			Timestamp: p.Timestamp,
			PriceYes:  p.PriceYes,
			PriceNo:   p.PriceNo,
			Volume:    p.VolumeFloat(),
		}
	}
	outcomes := m.OutcomeList()
	if outcomes == nil {
		outcomes = []models.Outcome{}
	}
	return BreakingMarket{
		ID:                  m.ID,
		ConditionID:         m.ConditionID,
		Question:            m.Question,
		Description:         m.Description,
		Slug:                m.Slug,
		Category:            m.Category,
		ImageURL:            m.ImageURL,
		EndDate:             m.EndDate,
		Outcomes:            outcomes,
		Volume:              decimalFloat(m.Volume),
		Liquidity:           decimalFloat(m.Liquidity),
		Active:              m.Active,
		Closed:              m.Closed,
		CurrentPrice:        snap.CurrentPrice,
		PriceChangePercent:  snap.PriceChangePercent,
		VolumeChangePercent: snap.VolumeChangePercent,
		PriceHigh:           snap.PriceHigh,
		PriceLow:            snap.PriceLow,
		VolatilityIndex:     snap.VolatilityIndex,
		MovementScore:       snap.MovementScore,
		Trend:               snap.Trend,
		PriceHistory:        history,
	}
}

func (s *BreakingMarketsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
