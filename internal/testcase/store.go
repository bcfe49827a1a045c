// Package testcase holds the shared collection of generated test cases and
// the operations that comment on, execute and delete them.
package testcase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Store is an in-memory, indexed collection of test cases. Every mutation
// bumps the record's Version.
type Store struct {
	mu          sync.RWMutex
	byUnique    map[string]*domain.TestCase
	byLegacy    map[string]string
	order       []string
	executor    Executor
	concurrency int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithConcurrency bounds parallel executor calls during bulk execution.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store holding a copy of seed.
func NewStore(seed []domain.TestCase, executor Executor, opts ...Option) *Store {
	if executor == nil {
		executor = NewRandomExecutor(nil, 0.7)
	}
	s := &Store{
		byUnique:    make(map[string]*domain.TestCase, len(seed)),
		byLegacy:    make(map[string]string, len(seed)),
		executor:    executor,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, tc := range seed {
		record := tc
		record.TestSteps = append([]string(nil), tc.TestSteps...)
		record.Version = 1
		s.byUnique[record.UniqueID] = &record
		if _, taken := s.byLegacy[record.TestCaseID]; !taken {
			s.byLegacy[record.TestCaseID] = record.UniqueID
		}
		s.order = append(s.order, record.UniqueID)
	}
	return s
}

// lookup resolves id as a unique id first, then as a legacy id.
// Callers must hold s.mu.
func (s *Store) lookup(id string) *domain.TestCase {
	if tc, ok := s.byUnique[id]; ok {
		return tc
	}
	if unique, ok := s.byLegacy[id]; ok {
		return s.byUnique[unique]
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: test case %q", domain.ErrNotFound, id)
}

func snapshot(tc *domain.TestCase) domain.TestCase {
	out := *tc
	out.TestSteps = append([]string(nil), tc.TestSteps...)
	return out
}

// List returns a copy of every test case in insertion order.
func (s *Store) List() []domain.TestCase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TestCase, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.byUnique[id]))
	}
	return out
}

// Len returns the number of test cases.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns the test case with the given unique or legacy id.
func (s *Store) Get(id string) (domain.TestCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tc := s.lookup(id)
	if tc == nil {
		return domain.TestCase{}, notFound(id)
	}
	return snapshot(tc), nil
}

// Update overwrites the expected result of the matching test case with the
// update's comment. The unique id is tried before the legacy id.
func (s *Store) Update(in domain.TestCaseUpdate) (*domain.UpdatedTestCase, error) {
	if in.UniqueID == "" && in.TestCaseID == "" {
		return nil, fmt.Errorf("%w: unique_id or test_case_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Comment) == "" {
		return nil, fmt.Errorf("%w: comment is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tc *domain.TestCase
	if in.UniqueID != "" {
		tc = s.lookup(in.UniqueID)
	}
	if tc == nil && in.TestCaseID != "" {
		tc = s.lookup(in.TestCaseID)
	}
	if tc == nil {
		id := in.UniqueID
		if id == "" {
			id = in.TestCaseID
		}
		return nil, notFound(id)
	}

	tc.ExpectedResult = in.Comment
	tc.Version++

	now := s.now()
	return &domain.UpdatedTestCase{
		TestCase:  snapshot(tc),
		ProjectID: in.ProjectID,
		ChatID:    in.ChatID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Comment is no longer supported; use Update.
func (s *Store) Comment(id, _ string) error {
	return fmt.Errorf("%w: commenting on test case %q is no longer supported, use update instead", domain.ErrDisabled, id)
}

// Delete removes the test case with the given unique or legacy id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc := s.lookup(id)
	if tc == nil {
		return notFound(id)
	}

	delete(s.byUnique, tc.UniqueID)
	for i, uid := range s.order {
		if uid == tc.UniqueID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.byLegacy[tc.TestCaseID] == tc.UniqueID {
		s.reindexLegacyLocked(tc.TestCaseID)
	}
	return nil
}

// reindexLegacyLocked points legacyID at the first remaining record that
// carries it, or drops the entry. Callers must hold s.mu for writing.
func (s *Store) reindexLegacyLocked(legacyID string) {
	for _, uid := range s.order {
		if s.byUnique[uid].TestCaseID == legacyID {
			s.byLegacy[legacyID] = uid
			return
		}
	}
	delete(s.byLegacy, legacyID)
}

// claim is a test case reserved for execution.
type claim struct {
	uniqueID string
	version  int64
	input    domain.TestCase
}

// claimLocked marks a new test case as Pending so concurrent executions see
// it as already executed. Callers must hold s.mu for writing.
func (s *Store) claimLocked(tc *domain.TestCase) claim {
	input := snapshot(tc)
	tc.Status = domain.StatusPending
	tc.Version++
	return claim{uniqueID: tc.UniqueID, version: tc.Version, input: input}
}

// settle applies an executor result to a claimed test case. A failed run
// returns the record to "new". It returns false if the record was deleted
// or modified while the executor ran.
func (s *Store) settle(c claim, out Outcome, runErr error) (domain.TestCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc, ok := s.byUnique[c.uniqueID]
	if !ok || tc.Version != c.version {
		return domain.TestCase{}, false
	}

	tc.Version++
	if runErr != nil {
		tc.Status = domain.StatusNew
		return domain.TestCase{}, false
	}
	tc.Status = out.Status
	tc.ActualResult = out.ActualResult
	return snapshot(tc), true
}

// Execute runs a single test case. Only test cases whose status is "new"
// may be executed; anything else fails with ErrConflict.
func (s *Store) Execute(ctx context.Context, id string) (domain.TestCase, error) {
	s.mu.Lock()
	tc := s.lookup(id)
	if tc == nil {
		s.mu.Unlock()
		return domain.TestCase{}, notFound(id)
	}
	if !tc.Status.IsNew() {
		status := tc.Status
		s.mu.Unlock()
		return domain.TestCase{}, fmt.Errorf("%w: test case %q already executed (status %s)", domain.ErrConflict, id, status)
	}
	c := s.claimLocked(tc)
	s.mu.Unlock()

	out, err := s.executor.Run(ctx, c.input)
	executed, ok := s.settle(c, out, err)
	if err != nil {
		return domain.TestCase{}, fmt.Errorf("execute test case %q: %w", id, err)
	}
	if !ok {
		return domain.TestCase{}, fmt.Errorf("%w: test case %q changed during execution", domain.ErrConflict, id)
	}

	slog.Info("Test case executed", "unique_id", executed.UniqueID, "status", executed.Status)
	return executed, nil
}

// ExecuteBulk runs every listed test case whose status is "new". Unknown ids
// and test cases that were already executed are skipped. It returns the test
// cases that were executed, in request order.
func (s *Store) ExecuteBulk(ctx context.Context, ids []string) ([]domain.TestCase, error) {
	s.mu.Lock()
	claims := make([]claim, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		tc := s.lookup(id)
		if tc == nil || seen[tc.UniqueID] || !tc.Status.IsNew() {
			continue
		}
		seen[tc.UniqueID] = true
		claims = append(claims, s.claimLocked(tc))
	}
	s.mu.Unlock()

	outcomes := make([]Outcome, len(claims))
	runErrs := make([]error, len(claims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range claims {
		g.Go(func() error {
			outcomes[i], runErrs[i] = s.executor.Run(gctx, c.input)
			return nil
		})
	}
	_ = g.Wait()

	executed := make([]domain.TestCase, 0, len(claims))
	for i, c := range claims {
		tc, ok := s.settle(c, outcomes[i], runErrs[i])
		if runErrs[i] != nil {
			slog.Warn("Bulk execution skipped test case", "unique_id", c.uniqueID, "error", runErrs[i])
			continue
		}
		if ok {
			executed = append(executed, tc)
		}
	}

	slog.Info("Bulk execution finished", "requested", len(ids), "executed", len(executed))
	return executed, ctx.Err()
}
