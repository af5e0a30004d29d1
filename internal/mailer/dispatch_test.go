package mailer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type senderFunc func(ctx context.Context, msg Message) error

func (f senderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

var reportMsg = Message{From: "ci@example.com", To: []string{"qa@example.com"}, Subject: "report"}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	errRefused := errors.New("connection refused")

	testCases := []struct {
		name      string
		failures  int32
		block     bool
		wantCalls int32
		wantErr   bool
	}{
		{name: "test_first_attempt", failures: 0, wantCalls: 1},
		{name: "test_one_retry", failures: 1, wantCalls: 2},
		{name: "test_no_unbounded_retry", failures: 5, wantCalls: 2, wantErr: true},
		{name: "test_attempt_timeout", block: true, wantCalls: 2, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				var calls atomic.Int32
				sender := senderFunc(
					func(ctx context.Context, _ Message) error {
						n := calls.Add(1)
						if tc.block {
							<-ctx.Done()
							return ctx.Err()
						}
						if n <= tc.failures {
							return errRefused
						}
						return nil
					},
				)

				core, logs := observer.New(zapcore.InfoLevel)
				d := NewDispatcher(sender, 20*time.Millisecond, zap.New(core))

				err := d.Dispatch(context.Background(), reportMsg)
				if (err != nil) != tc.wantErr {
					t.Fatalf("got err %v, want error: %v", err, tc.wantErr)
				}

				if got := calls.Load(); got != tc.wantCalls {
					t.Errorf("got %d send calls, want %d", got, tc.wantCalls)
				}

				if tc.block && !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("got %v, want deadline exceeded", err)
				}

				failedAttempts := tc.wantCalls
				if !tc.wantErr {
					failedAttempts--
				}
				if got := logs.FilterMessage("report mail attempt failed").Len(); got != int(failedAttempts) {
					t.Errorf("got %d failure log lines, want %d", got, failedAttempts)
				}
			},
		)
	}
}

func TestDispatcher_NoRecipient(t *testing.T) {
	t.Parallel()

	var called bool
	d := NewDispatcher(
		senderFunc(
			func(context.Context, Message) error {
				called = true
				return nil
			},
		), time.Second, nil,
	)

	err := d.Dispatch(context.Background(), Message{From: "ci@example.com"})
	if !errors.Is(err, ErrNoRecipient) {
		t.Errorf("got %v, want ErrNoRecipient", err)
	}

	if called {
		t.Error("sender called without recipients")
	}
}

func TestDispatcher_CanceledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDispatcher(
		senderFunc(
			func(ctx context.Context, _ Message) error {
				calls.Add(1)
				return ctx.Err()
			},
		), time.Second, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Dispatch(ctx, reportMsg); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}

	if calls.Load() != 1 {
		t.Errorf("retried after cancellation: %d calls", calls.Load())
	}
}
