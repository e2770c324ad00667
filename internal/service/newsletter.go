package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"palpiteiros/internal/apperr"
	"palpiteiros/internal/logger"
	"palpiteiros/internal/models"
	"palpiteiros/internal/notify"
	"palpiteiros/internal/repository"
)

const (
	DefaultNewsletterMarkets = 10
	DefaultNewsletterBatch   = 10
	maxNewsletterMarkets     = 100

	dailyResendAfter  = 23 * time.Hour
	weeklyResendAfter = 7 * 24 * time.Hour
)

// MarketRanker is the part of BreakingMarketsService the dispatcher needs.
type MarketRanker interface {
	Rank(ctx context.Context, params Params) ([]BreakingMarket, error)
}

type NewsletterDispatcher struct {
	Store  repository.SubscriptionRepository
	Ranker MarketRanker
	Sender notify.Sender
	Logger *zap.Logger

	SiteURL     string
	FromAddress string
	MarketLimit int
	BatchSize   int
	BatchDelay  time.Duration
	// Limiter throttles individual sends across batches. Nil means unthrottled.
	Limiter *rate.Limiter

	Now func() time.Time
}

type DispatchOptions struct {
	Frequency string `json:"frequency" form:"frequency"`
	Limit     int    `json:"limit" form:"limit"`
}

type DispatchResult struct {
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`
}

// Eligible reports whether sub is due a digest at now.
func Eligible(sub models.NewsletterSubscription, now time.Time) bool {
	if sub.LastSentAt == nil {
		return true
	}
	elapsed := now.Sub(*sub.LastSentAt)
	switch sub.Frequency {
	case models.FrequencyDaily:
		return elapsed > dailyResendAfter
	case models.FrequencyWeekly:
		return elapsed > weeklyResendAfter
	default:
		return false
	}
}

func (d *NewsletterDispatcher) Dispatch(ctx context.Context, opts DispatchOptions) (DispatchResult, error) {
	started := d.now()
	result := DispatchResult{Errors: []string{}, Timestamp: started}

	frequency := strings.ToLower(strings.TrimSpace(opts.Frequency))
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	if !models.ValidFrequency(frequency) {
		return result, apperr.Validation("frequency", "must be %q or %q", models.FrequencyDaily, models.FrequencyWeekly)
	}
	limit := opts.Limit
	if limit == 0 {
		limit = d.MarketLimit
		if limit <= 0 {
			limit = DefaultNewsletterMarkets
		}
	}
	if limit < 1 || limit > maxNewsletterMarkets {
		return result, apperr.Validation("limit", "must be between 1 and %d", maxNewsletterMarkets)
	}
	if d.Store == nil || d.Ranker == nil {
		return result, &apperr.ConfigurationError{Key: "newsletter", Message: "dispatcher store or ranker not configured"}
	}
	if d.Sender == nil {
		return result, &apperr.ConfigurationError{Key: "email", Message: "no email sender configured"}
	}

	params := DefaultParams()
	params.Limit = limit
	if frequency == models.FrequencyWeekly {
		params.TimeRangeHours = maxBreakingWindowHours
	}
	markets, err := d.Ranker.Rank(ctx, params)
	if err != nil {
		return result, err
	}
	subs, err := d.Store.ListActiveSubscriptions(ctx, frequency)
	if err != nil {
		return result, apperr.Upstream("list subscriptions", err)
	}

	eligible := make([]models.NewsletterSubscription, 0, len(subs))
	for _, sub := range subs {
		if Eligible(sub, started) {
			eligible = append(eligible, sub)
		} else {
			result.Skipped++
		}
	}
	if len(markets) == 0 {
		result.Skipped += len(eligible)
		d.log().Info("newsletter dispatch skipped, no breaking markets",
			zap.String("frequency", frequency),
			zap.Int("subscribers", len(subs)),
		)
		return d.finish(result, started), nil
	}

	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultNewsletterBatch
	}
	var mu sync.Mutex
	for start := 0; start < len(eligible); start += batchSize {
		if start > 0 && !d.pause(ctx) {
			remaining := len(eligible) - start
			result.Skipped += remaining
			result.Errors = append(result.Errors, fmt.Sprintf("dispatch stopped: %v (%d subscribers not reached)", ctx.Err(), remaining))
			break
		}
		end := min(start+batchSize, len(eligible))

		var g errgroup.Group
		for _, sub := range eligible[start:end] {
			g.Go(func() error {
				sent, errs := d.deliver(ctx, sub, frequency, markets)
				mu.Lock()
				defer mu.Unlock()
				if sent {
					result.Sent++
				} else {
					result.Failed++
				}
				result.Errors = append(result.Errors, errs...)
				return nil
			})
		}
		_ = g.Wait()
	}

	result = d.finish(result, started)
	d.log().Info("newsletter dispatched",
		zap.String("frequency", frequency),
		zap.Int("markets", len(markets)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int64("duration_ms", result.DurationMS),
	)
	return result, nil
}

// deliver sends one digest. A send that succeeded but could not be marked still
// counts as sent and may be repeated on the next run.
func (d *NewsletterDispatcher) deliver(ctx context.Context, sub models.NewsletterSubscription, frequency string, markets []BreakingMarket) (bool, []string) {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return false, []string{sub.Email + ": " + err.Error()}
		}
	}
	now := d.now()
	subject, html, text, err := renderDigest(d.SiteURL, frequency, sub.UnsubscribeToken, markets, now)
	if err != nil {
		return false, []string{sub.Email + ": " + err.Error()}
	}
	unsubscribe := UnsubscribeURL(d.SiteURL, sub.UnsubscribeToken)
	msg := notify.Message{
		From:    d.FromAddress,
		To:      sub.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + unsubscribe + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}
	if err := d.Sender.Send(ctx, msg); err != nil {
		d.log().Warn("newsletter send failed", zap.String("email", sub.Email), zap.Error(err))
		return false, []string{sub.Email + ": " + err.Error()}
	}
	if err := d.Store.MarkSubscriptionSent(ctx, sub.ID, now); err != nil {
		d.log().Error("mark newsletter sent failed",
			zap.Uint64("subscription_id", sub.ID),
			zap.String("email", sub.Email),
			zap.Error(err),
		)
		return true, []string{sub.Email + ": sent but not recorded: " + err.Error()}
	}
	return true, nil
}

func (d *NewsletterDispatcher) pause(ctx context.Context) bool {
	if d.BatchDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d.BatchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (d *NewsletterDispatcher) finish(result DispatchResult, started time.Time) DispatchResult {
	result.DurationMS = d.now().Sub(started).Milliseconds()
	return result
}

func (d *NewsletterDispatcher) log() *zap.Logger {
	return logger.OrNop(d.Logger)
}

func (d *NewsletterDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}
