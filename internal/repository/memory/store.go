// Package memory is an in-process Repository used by tests and by db.driver=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"palpiteiros/internal/models"
	"palpiteiros/internal/repository"
)

type pointKey struct {
	marketID uint64
	ts       int64
}

type Store struct {
	mu sync.RWMutex

	now func() time.Time

	nextMarketID uint64
	markets      map[uint64]models.Market
	byCondition  map[string]uint64

	nextPointID uint64
	points      []models.PriceHistoryPoint
	pointKeys   map[pointKey]struct{}

	nextSubID uint64
	subs      map[uint64]models.NewsletterSubscription

	syncStates map[string]models.SyncState
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		markets:     map[uint64]models.Market{},
		byCondition: map[string]uint64{},
		pointKeys:   map[pointKey]struct{}{},
		subs:        map[uint64]models.NewsletterSubscription{},
		syncStates:  map[string]models.SyncState{},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// --- markets ----------------------------------------------------------------

func (s *Store) UpsertMarkets(ctx context.Context, items []models.Market) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		s.upsertMarketLocked(&items[i])
	}
	return nil
}

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if item == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertMarketLocked(item)
	return nil
}

func (s *Store) upsertMarketLocked(item *models.Market) {
	now := s.now()
	id, ok := s.byCondition[item.ConditionID]
	if ok {
		prev := s.markets[id]
		item.ID = id
		item.CreatedAt = prev.CreatedAt
	} else {
		s.nextMarketID++
		id = s.nextMarketID
		item.ID = id
		item.CreatedAt = now
		s.byCondition[item.ConditionID] = id
	}
	item.UpdatedAt = now
	s.markets[id] = *item
}

func (s *Store) FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []models.Market
	for _, cid := range conditionIDs {
		cid = strings.TrimSpace(cid)
		if _, dup := seen[cid]; dup || cid == "" {
			continue
		}
		seen[cid] = struct{}{}
		if id, ok := s.byCondition[cid]; ok {
			out = append(out, s.markets[id])
		}
	}
	return out, nil
}

func (s *Store) GetMarketByID(ctx context.Context, id uint64) (*models.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCondition[strings.TrimSpace(conditionID)]
	if !ok {
		return nil, nil
	}
	m := s.markets[id]
	return &m, nil
}

func (s *Store) ListActiveMarkets(ctx context.Context, afterID uint64, limit int) ([]models.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if m.Active && !m.Closed && !m.Archived && m.ID > afterID {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- price history ----------------------------------------------------------

func (s *Store) InsertPricePoints(ctx context.Context, items []models.PriceHistoryPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make(map[pointKey]struct{}, len(items))
	for _, p := range items {
		k := keyOf(p)
		if _, ok := s.pointKeys[k]; ok {
			return repository.ErrDuplicate
		}
		if _, ok := batch[k]; ok {
			return repository.ErrDuplicate
		}
		batch[k] = struct{}{}
	}
	for i := range items {
		s.insertPointLocked(&items[i])
	}
	return nil
}

func (s *Store) InsertPricePoint(ctx context.Context, item *models.PriceHistoryPoint) error {
	if item == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pointKeys[keyOf(*item)]; ok {
		return repository.ErrDuplicate
	}
	s.insertPointLocked(item)
	return nil
}

func (s *Store) insertPointLocked(item *models.PriceHistoryPoint) {
	s.nextPointID++
	item.ID = s.nextPointID
	s.pointKeys[keyOf(*item)] = struct{}{}
	s.points = append(s.points, *item)
}

func keyOf(p models.PriceHistoryPoint) pointKey {
	return pointKey{marketID: p.MarketID, ts: p.Timestamp.UnixNano()}
}

func (s *Store) ListPriceHistory(ctx context.Context, params repository.ListPriceHistoryParams) ([]models.PriceHistoryPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[uint64]struct{}, len(params.MarketIDs))
	for _, id := range params.MarketIDs {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	var out []models.PriceHistoryPoint
	for _, p := range s.points {
		if _, ok := want[p.MarketID]; !ok {
			continue
		}
		if !params.Since.IsZero() && p.Timestamp.Before(params.Since) {
			continue
		}
		if !params.Until.IsZero() && p.Timestamp.After(params.Until) {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// --- newsletter subscriptions -----------------------------------------------

func (s *Store) GetSubscriptionByEmail(ctx context.Context, email string) (*models.NewsletterSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.Email == email {
			out := sub
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) GetActiveSubscriptionByToken(ctx context.Context, token string) (*models.NewsletterSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.Active && sub.UnsubscribeToken == token {
			out := sub
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateSubscription(ctx context.Context, item *models.NewsletterSubscription) error {
	if item == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Email == item.Email || sub.UnsubscribeToken == item.UnsubscribeToken {
			return repository.ErrDuplicate
		}
	}
	now := s.now()
	s.nextSubID++
	item.ID = s.nextSubID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.subs[item.ID] = *item
	return nil
}

func (s *Store) SaveSubscription(ctx context.Context, item *models.NewsletterSubscription) error {
	if item == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.subs[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, sub := range s.subs {
		if id != item.ID && (sub.Email == item.Email || sub.UnsubscribeToken == item.UnsubscribeToken) {
			return repository.ErrDuplicate
		}
	}
	item.CreatedAt = prev.CreatedAt
	item.UpdatedAt = s.now()
	s.subs[item.ID] = *item
	return nil
}

func (s *Store) ListActiveSubscriptions(ctx context.Context, frequency string) ([]models.NewsletterSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frequency = strings.TrimSpace(frequency)
	s.mu.RLock()
	var out []models.NewsletterSubscription
	for _, sub := range s.subs {
		if !sub.Active {
			continue
		}
		if frequency != "" && sub.Frequency != frequency {
			continue
		}
		out = append(out, sub)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkSubscriptionSent(ctx context.Context, id uint64, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return repository.ErrNotFound
	}
	at := sentAt
	sub.LastSentAt = &at
	sub.UpdatedAt = s.now()
	s.subs[id] = sub
	return nil
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.syncStates[scope]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if state == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStates[state.Scope] = *state
	return nil
}
