package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCompleter struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply + prompt, nil
}

func (f *fakeCompleter) Close() error { return nil }

func TestServiceCompleteCountsRequests(t *testing.T) {
	svc := NewService(&fakeCompleter{reply: "echo: "}, Config{Model: "m"})

	got, err := svc.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "echo: hi" {
		t.Fatalf("unexpected reply %q", got)
	}

	stats := svc.GetStats()
	if !stats.Enabled || stats.Requests != 1 || stats.Failures != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestServiceCompleteFailure(t *testing.T) {
	want := errors.New("quota exceeded")
	svc := NewService(&fakeCompleter{err: want}, Config{})

	if _, err := svc.Complete(context.Background(), "hi"); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if stats := svc.GetStats(); stats.Failures != 1 {
		t.Fatalf("expected one failure, got %+v", stats)
	}
}

func TestServiceCompleteTimeout(t *testing.T) {
	svc := NewService(&fakeCompleter{delay: time.Second}, Config{Timeout: 10 * time.Millisecond})

	_, err := svc.Complete(context.Background(), "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDisabledService(t *testing.T) {
	svc := NewService(nil, DefaultConfig())

	if _, err := svc.Complete(context.Background(), "hi"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if svc.GetStats().Enabled {
		t.Fatal("expected disabled stats")
	}
}
