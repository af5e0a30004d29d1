package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MaxAttempts bounds delivery to the first try plus one retry.
const MaxAttempts = 2

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher bounds each delivery attempt by a timeout and retries once.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	var errs []error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err := d.attempt(ctx, msg)
		if err == nil {
			d.logger.Info(
				"report mail sent",
				zap.Strings("to", msg.To),
				zap.Int("attempt", attempt),
				zap.Int("attachments", len(msg.Attachments)),
			)
			return nil
		}

		d.logger.Warn("report mail attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))

		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("send report mail: %w", errors.Join(errs...))
}

func (d *Dispatcher) attempt(ctx context.Context, msg Message) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return d.sender.Send(ctx, msg)
}
