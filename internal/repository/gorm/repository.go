package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"palpiteiros/internal/models"
	"palpiteiros/internal/repository"
)

const pgUniqueViolation = "23505"

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("gorm store not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- markets ----------------------------------------------------------------

var marketUpsertColumns = []string{
	"external_id",
	"question",
	"description",
	"slug",
	"start_date",
	"end_date",
	"outcomes",
	"volume",
	"liquidity",
	"active",
	"closed",
	"archived",
	"category",
	"tags",
	"image_url",
	"last_synced_at",
	"updated_at",
	"raw_json",
}

func marketConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "condition_id"}},
		DoUpdates: clause.AssignmentColumns(marketUpsertColumns),
	}
}

func (s *Store) UpsertMarkets(ctx context.Context, items []models.Market) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createInBatches(tx.Clauses(marketConflict()), items, 200)
	}))
}

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Clauses(marketConflict()).Create(item).Error)
}

func (s *Store) FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(conditionIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("condition_id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetMarketByID(ctx context.Context, id uint64) (*models.Market, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).First(&item, "condition_id = ?", conditionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveMarkets(ctx context.Context, afterID uint64, limit int) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("active = ? AND closed = ? AND archived = ?", true, false, false).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(normalizeLimit(limit, 500)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- price history ----------------------------------------------------------

func (s *Store) InsertPricePoints(ctx context.Context, items []models.PriceHistoryPoint) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createInBatches(tx, items, 500)
	}))
}

func (s *Store) InsertPricePoint(ctx context.Context, item *models.PriceHistoryPoint) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) ListPriceHistory(ctx context.Context, params repository.ListPriceHistoryParams) ([]models.PriceHistoryPoint, error) {
	if s == nil || s.db == nil || len(params.MarketIDs) == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.PriceHistoryPoint{}).
		Where("market_id IN ?", params.MarketIDs)
	if !params.Since.IsZero() {
		query = query.Where("timestamp >= ?", params.Since)
	}
	if !params.Until.IsZero() {
		query = query.Where("timestamp <= ?", params.Until)
	}
	var items []models.PriceHistoryPoint
	if err := query.Order("market_id ASC").Order("timestamp ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- newsletter subscriptions -----------------------------------------------

func (s *Store) GetSubscriptionByEmail(ctx context.Context, email string) (*models.NewsletterSubscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.NewsletterSubscription
	err := s.db.WithContext(ctx).First(&item, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetActiveSubscriptionByToken(ctx context.Context, token string) (*models.NewsletterSubscription, error) {
	if s == nil || s.db == nil || strings.TrimSpace(token) == "" {
		return nil, nil
	}
	var item models.NewsletterSubscription
	err := s.db.WithContext(ctx).
		Where("unsubscribe_token = ? AND active = ?", token, true).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateSubscription(ctx context.Context, item *models.NewsletterSubscription) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) SaveSubscription(ctx context.Context, item *models.NewsletterSubscription) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return repository.ErrNotFound
	}
	res := s.db.WithContext(ctx).
		Model(&models.NewsletterSubscription{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"email":             item.Email,
			"active":            item.Active,
			"frequency":         item.Frequency,
			"unsubscribe_token": item.UnsubscribeToken,
			"last_sent_at":      item.LastSentAt,
			"unsubscribed_at":   item.UnsubscribedAt,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListActiveSubscriptions(ctx context.Context, frequency string) ([]models.NewsletterSubscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.NewsletterSubscription{}).
		Where("active = ?", true)
	if f := strings.TrimSpace(frequency); f != "" {
		query = query.Where("frequency = ?", f)
	}
	var items []models.NewsletterSubscription
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkSubscriptionSent(ctx context.Context, id uint64, sentAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.NewsletterSubscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sent_at": sentAt,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"cursor",
			"stats_json",
		}),
	}).Create(state).Error
}

// --- helpers ----------------------------------------------------------------

func translate(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return errors.Join(repository.ErrDuplicate, err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return false
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 5000 {
		return 5000
	}
	return limit
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
