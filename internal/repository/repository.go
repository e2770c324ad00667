package repository

import (
	"context"
	"errors"
	"time"

	"palpiteiros/internal/models"
)

var (
	// ErrDuplicate is returned when a write collides with a unique key.
	ErrDuplicate = errors.New("repository: duplicate key")
	ErrNotFound  = errors.New("repository: not found")
)

type MarketRepository interface {
	// UpsertMarkets writes every item or none, keyed by condition_id.
	UpsertMarkets(ctx context.Context, items []models.Market) error
	UpsertMarket(ctx context.Context, item *models.Market) error
	FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error)
	GetMarketByID(ctx context.Context, id uint64) (*models.Market, error)
	GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error)
	// ListActiveMarkets pages active, open, unarchived markets in id order, starting after afterID.
	ListActiveMarkets(ctx context.Context, afterID uint64, limit int) ([]models.Market, error)
}

type PriceHistoryRepository interface {
	// InsertPricePoints is all-or-nothing; a single duplicate fails the whole batch.
	InsertPricePoints(ctx context.Context, items []models.PriceHistoryPoint) error
	InsertPricePoint(ctx context.Context, item *models.PriceHistoryPoint) error
	ListPriceHistory(ctx context.Context, params ListPriceHistoryParams) ([]models.PriceHistoryPoint, error)
}

type SubscriptionRepository interface {
	GetSubscriptionByEmail(ctx context.Context, email string) (*models.NewsletterSubscription, error)
	GetActiveSubscriptionByToken(ctx context.Context, token string) (*models.NewsletterSubscription, error)
	CreateSubscription(ctx context.Context, item *models.NewsletterSubscription) error
	SaveSubscription(ctx context.Context, item *models.NewsletterSubscription) error
	ListActiveSubscriptions(ctx context.Context, frequency string) ([]models.NewsletterSubscription, error)
	MarkSubscriptionSent(ctx context.Context, id uint64, sentAt time.Time) error
}

type SyncStateRepository interface {
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}

type Repository interface {
	MarketRepository
	PriceHistoryRepository
	SubscriptionRepository
	SyncStateRepository

	Ping(ctx context.Context) error
}

// ListPriceHistoryParams selects points with Since <= timestamp <= Until.
// A zero Until means no upper bound.
type ListPriceHistoryParams struct {
	MarketIDs []uint64
	Since     time.Time
	Until     time.Time
}
