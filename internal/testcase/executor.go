package testcase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
)

// Outcome is the result of running one test case.
type Outcome struct {
	Status       domain.TestCaseStatus
	ActualResult string
}

// Executor runs a test case and reports its outcome.
type Executor interface {
	Run(ctx context.Context, tc domain.TestCase) (Outcome, error)
}

// RandomExecutor is a placeholder runner that passes with probability PassRate.
type RandomExecutor struct {
	mu       sync.Mutex
	rng      *rand.Rand
	passRate float64
	now      func() time.Time
}

// NewRandomExecutor creates a mock executor. A nil rng uses a random seed.
func NewRandomExecutor(rng *rand.Rand, passRate float64) *RandomExecutor {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if passRate <= 0 || passRate > 1 {
		passRate = 0.7
	}
	return &RandomExecutor{rng: rng, passRate: passRate, now: time.Now}
}

// Run picks Pass or Fail at random.
func (e *RandomExecutor) Run(ctx context.Context, _ domain.TestCase) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	e.mu.Lock()
	roll := e.rng.Float64()
	e.mu.Unlock()

	status := domain.StatusFail
	if roll < e.passRate {
		status = domain.StatusPass
	}
	return Outcome{Status: status, ActualResult: executedNote(e.now())}, nil
}

// FixedExecutor always reports the same status. It is the deterministic
// stand-in for a real automation backend.
type FixedExecutor struct {
	Status domain.TestCaseStatus
	Now    func() time.Time
}

// Run returns the configured status.
func (e FixedExecutor) Run(ctx context.Context, _ domain.TestCase) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	status := e.Status
	if status == "" {
		status = domain.StatusPass
	}
	return Outcome{Status: status, ActualResult: executedNote(now())}, nil
}

func executedNote(t time.Time) string {
	return fmt.Sprintf("Test executed on %s", t.UTC().Format(time.RFC3339))
}
