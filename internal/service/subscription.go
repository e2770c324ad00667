package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"palpiteiros/internal/apperr"
	"palpiteiros/internal/logger"
	"palpiteiros/internal/models"
	"palpiteiros/internal/ratelimit"
	"palpiteiros/internal/repository"
)

const maxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const (
	MessageSubscribed   = "successfully subscribed"
	MessageReactivated  = "subscription reactivated"
	MessageUpdated      = "subscription updated"
	MessageAlready      = "already subscribed"
	MessageUnsubscribed = "successfully unsubscribed"
)

type SubscriptionService struct {
	Store   repository.SubscriptionRepository
	Limiter ratelimit.Limiter
	Logger  *zap.Logger

	NewToken func() string
	Now      func() time.Time
}

type SubscribeResult struct {
	Message      string                         `json:"message"`
	Subscription *models.NewsletterSubscription `json:"-"`
	Reactivated  bool                           `json:"reactivated"`
}

// NormalizeEmail trims and lower-cases email and rejects malformed addresses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email", "is required")
	}
	if len(email) > maxEmailLength {
		return "", apperr.Validation("email", "must be at most %d characters", maxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return "", apperr.Validation("email", "is not a valid address")
	}
	return email, nil
}

func (s *SubscriptionService) Subscribe(ctx context.Context, email, frequency string) (SubscribeResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return SubscribeResult{}, err
	}
	frequency = strings.ToLower(strings.TrimSpace(frequency))
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	if !models.ValidFrequency(frequency) {
		return SubscribeResult{}, apperr.Validation("frequency", "must be %q or %q", models.FrequencyDaily, models.FrequencyWeekly)
	}
	if s.Store == nil {
		return SubscribeResult{}, &apperr.ConfigurationError{Key: "db", Message: "subscription store not configured"}
	}

	if s.Limiter != nil {
		decision, err := s.Limiter.CheckAndConsume(ctx, "subscribe:"+email)
		if err != nil {
			// Limiter backend outages do not block sign-ups.
			s.log().Warn("subscribe rate limit check failed", zap.Error(err))
		} else if !decision.Allowed {
			return SubscribeResult{}, &apperr.RateLimitError{RetryAfter: decision.RetryAfter}
		}
	}

	existing, err := s.Store.GetSubscriptionByEmail(ctx, email)
	if err != nil {
		return SubscribeResult{}, apperr.Upstream("load subscription", err)
	}
	if existing == nil {
		sub := &models.NewsletterSubscription{
			Email:            email,
			Active:           true,
			Frequency:        frequency,
			UnsubscribeToken: s.token(),
		}
		err := s.Store.CreateSubscription(ctx, sub)
		switch {
		case err == nil:
			s.log().Info("newsletter subscription created", zap.String("email", email), zap.String("frequency", frequency))
			return SubscribeResult{Message: MessageSubscribed, Subscription: sub}, nil
		case errors.Is(err, repository.ErrDuplicate):
			existing, err = s.Store.GetSubscriptionByEmail(ctx, email)
			if err != nil {
				return SubscribeResult{}, apperr.Upstream("load subscription", err)
			}
			if existing == nil {
				return SubscribeResult{}, apperr.Upstream("create subscription", repository.ErrDuplicate)
			}
		default:
			return SubscribeResult{}, apperr.Upstream("create subscription", err)
		}
	}
	return s.updateExisting(ctx, existing, frequency)
}

func (s *SubscriptionService) updateExisting(ctx context.Context, sub *models.NewsletterSubscription, frequency string) (SubscribeResult, error) {
	if !sub.Active {
		sub.Active = true
		sub.Frequency = frequency
		sub.UnsubscribeToken = s.token()
		sub.UnsubscribedAt = nil
		if err := s.Store.SaveSubscription(ctx, sub); err != nil {
			return SubscribeResult{}, apperr.Upstream("reactivate subscription", err)
		}
		s.log().Info("newsletter subscription reactivated", zap.String("email", sub.Email))
		return SubscribeResult{Message: MessageReactivated, Subscription: sub, Reactivated: true}, nil
	}
	if sub.Frequency == frequency {
		return SubscribeResult{Message: MessageAlready, Subscription: sub}, nil
	}
	sub.Frequency = frequency
	if err := s.Store.SaveSubscription(ctx, sub); err != nil {
		return SubscribeResult{}, apperr.Upstream("update subscription", err)
	}
	return SubscribeResult{Message: MessageUpdated, Subscription: sub}, nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.ErrInvalidToken
	}
	if s.Store == nil {
		return &apperr.ConfigurationError{Key: "db", Message: "subscription store not configured"}
	}
	sub, err := s.Store.GetActiveSubscriptionByToken(ctx, token)
	if err != nil {
		return apperr.Upstream("load subscription", err)
	}
	if sub == nil {
		return apperr.ErrInvalidToken
	}
	now := s.now()
	sub.Active = false
	sub.UnsubscribedAt = &now
	if err := s.Store.SaveSubscription(ctx, sub); err != nil {
		return apperr.Upstream("unsubscribe", err)
	}
	s.log().Info("newsletter subscription cancelled", zap.Uint64("subscription_id", sub.ID))
	return nil
}

func (s *SubscriptionService) token() string {
	if s.NewToken != nil {
		return s.NewToken()
	}
	return uuid.NewString()
}

func (s *SubscriptionService) log() *zap.Logger {
	return logger.OrNop(s.Logger)
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
