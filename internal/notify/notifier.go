// Package notify delivers newsletter emails through one or more providers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

var ErrNoSenders = errors.New("notify: no senders configured")

// Chain tries senders in order and stops at the first success.
type Chain struct {
	Senders []Sender
	Logger  *zap.Logger
}

func NewChain(logger *zap.Logger, senders ...Sender) *Chain {
	out := make([]Sender, 0, len(senders))
	for _, s := range senders {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Chain{Senders: out, Logger: logger}
}

func (c *Chain) Name() string {
	if c == nil || len(c.Senders) == 0 {
		return "chain()"
	}
	names := make([]string, len(c.Senders))
	for i, s := range c.Senders {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Send(ctx context.Context, msg Message) error {
	if c == nil || len(c.Senders) == 0 {
		return ErrNoSenders
	}
	var errs []error
	for _, s := range c.Senders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := s.Send(ctx, msg)
		if err == nil {
			if len(errs) > 0 && c.Logger != nil {
				c.Logger.Info("email delivered by fallback sender",
					zap.String("sender", s.Name()),
					zap.Int("failed_before", len(errs)),
				)
			}
			return nil
		}
		if c.Logger != nil {
			c.Logger.Warn("email sender failed",
				zap.String("sender", s.Name()),
				zap.Error(err),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return errors.Join(errs...)
}
