package run

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWithSignals_ExitCodes(t *testing.T) {
	r := New(zap.NewNop())

	if code := r.WithSignals(func(context.Context) error { return nil }); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if code := r.WithSignals(func(context.Context) error { return http.ErrServerClosed }); code != 0 {
		t.Fatalf("expected 0 for closed server, got %d", code)
	}
	if code := r.WithSignals(func(context.Context) error { return errors.New("bind: address in use") }); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestWithSignals_Cancelled(t *testing.T) {
	r := New(zap.NewNop())
	r.notify = func(ctx context.Context) (context.Context, context.CancelFunc) {
		c, cancel := context.WithCancel(ctx)
		cancel()
		return c, cancel
	}
	code := r.WithSignals(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return errors.New("late")
	})
	if code != 0 {
		t.Fatalf("expected 0 on signal, got %d", code)
	}
}

func TestGraceful(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called bool
	r.Graceful(ctx, time.Second, func(c context.Context) error {
		if _, ok := c.Deadline(); !ok {
			t.Error("expected a shutdown deadline")
		}
		called = true
		return nil
	})
	if !called {
		t.Fatal("expected shutdown to run")
	}
}
