package testcase

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleCases() []domain.TestCase {
	return []domain.TestCase{
		{TestCaseID: "TC001", UniqueID: "TC001-aaaa", Title: "Login", Status: domain.StatusNew, TestSteps: []string{"open", "submit"}},
		{TestCaseID: "TC002", UniqueID: "TC002-bbbb", Title: "Logout", Status: domain.StatusNew},
		{TestCaseID: "TC003", UniqueID: "TC003-cccc", Title: "Reset", Status: "NEW"},
	}
}

func newTestStore(exec Executor) *Store {
	return NewStore(sampleCases(), exec)
}

type blockingExecutor struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingExecutor) Run(ctx context.Context, _ domain.TestCase) (Outcome, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	return Outcome{Status: domain.StatusPass, ActualResult: "done"}, nil
}

type failingExecutor struct{}

func (failingExecutor) Run(context.Context, domain.TestCase) (Outcome, error) {
	return Outcome{}, errors.New("runner offline")
}

func TestSeedLoads(t *testing.T) {
	cases, err := LoadSeed()
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	unique := map[string]bool{}
	for _, tc := range cases {
		assert.Equal(t, domain.StatusNew, tc.Status)
		assert.NotEmpty(t, tc.TestSteps)
		assert.NotEmpty(t, tc.UniqueID)
		assert.False(t, unique[tc.UniqueID], "duplicate unique id %s", tc.UniqueID)
		unique[tc.UniqueID] = true
	}
}

func TestParseSeedRequiresLegacyID(t *testing.T) {
	_, err := ParseSeed([]byte("- title: orphan\n"))
	assert.Error(t, err)
}

func TestListReturnsCopies(t *testing.T) {
	s := newTestStore(FixedExecutor{})

	list := s.List()
	require.Len(t, list, 3)
	list[0].Title = "mutated"
	list[0].TestSteps[0] = "mutated"

	got, err := s.Get("TC001-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "Login", got.Title)
	assert.Equal(t, "open", got.TestSteps[0])
}

func TestGetFallsBackToLegacyID(t *testing.T) {
	s := newTestStore(FixedExecutor{})

	byUnique, err := s.Get("TC002-bbbb")
	require.NoError(t, err)
	byLegacy, err := s.Get("TC002")
	require.NoError(t, err)
	if diff := cmp.Diff(byUnique, byLegacy); diff != "" {
		t.Fatalf("lookup mismatch (-unique +legacy):\n%s", diff)
	}

	_, err = s.Get("TC999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore(sampleCases(), FixedExecutor{}, WithClock(func() time.Time { return fixed }))

	got, err := s.Update(domain.TestCaseUpdate{
		ChatID: 4, ProjectID: 9, TestCaseID: "TC001", UniqueID: "does-not-exist", Comment: "Dashboard shows greeting",
	})
	require.NoError(t, err)

	want := &domain.UpdatedTestCase{
		TestCase: domain.TestCase{
			TestCaseID: "TC001", UniqueID: "TC001-aaaa", Title: "Login", Status: domain.StatusNew,
			TestSteps: []string{"open", "submit"}, ExpectedResult: "Dashboard shows greeting",
		},
		ProjectID: 9,
		ChatID:    4,
		CreatedAt: fixed,
		UpdatedAt: fixed,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(domain.TestCase{}, "Version")); diff != "" {
		t.Fatalf("unexpected update result (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(2), got.Version)

	_, err = s.Update(domain.TestCaseUpdate{UniqueID: "missing", Comment: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Update(domain.TestCaseUpdate{UniqueID: "TC001-aaaa"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Update(domain.TestCaseUpdate{Comment: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCommentIsDisabled(t *testing.T) {
	s := newTestStore(FixedExecutor{})
	err := s.Comment("TC001", "anything")
	assert.ErrorIs(t, err, domain.ErrDisabled)
	assert.Contains(t, err.Error(), "update")
}

func TestExecuteTransitionsOnce(t *testing.T) {
	s := newTestStore(NewRandomExecutor(rand.New(rand.NewPCG(1, 2)), 0.7))
	ctx := context.Background()

	got, err := s.Execute(ctx, "TC001-aaaa")
	require.NoError(t, err)
	assert.Contains(t, []domain.TestCaseStatus{domain.StatusPass, domain.StatusFail}, got.Status)
	assert.NotEmpty(t, got.ActualResult)

	_, err = s.Execute(ctx, "TC001-aaaa")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.Execute(ctx, "TC404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteIsCaseInsensitiveOnNew(t *testing.T) {
	s := newTestStore(FixedExecutor{Status: domain.StatusFail})

	got, err := s.Execute(context.Background(), "TC003")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, got.Status)
}

func TestExecuteFailureRestoresNew(t *testing.T) {
	s := newTestStore(failingExecutor{})

	_, err := s.Execute(context.Background(), "TC002")
	require.Error(t, err)

	got, err := s.Get("TC002")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status)
}

func TestConcurrentExecuteSeesClaim(t *testing.T) {
	exec := &blockingExecutor{release: make(chan struct{}), started: make(chan struct{})}
	s := newTestStore(exec)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Execute(context.Background(), "TC001")
	}()

	<-exec.started
	_, err := s.Execute(context.Background(), "TC001")
	assert.ErrorIs(t, err, domain.ErrConflict)

	close(exec.release)
	wg.Wait()
	require.NoError(t, firstErr)
}

func TestDeleteDuringExecutionDropsResult(t *testing.T) {
	exec := &blockingExecutor{release: make(chan struct{}), started: make(chan struct{})}
	s := newTestStore(exec)

	done := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background(), "TC001")
		done <- err
	}()

	<-exec.started
	require.NoError(t, s.Delete("TC001"))
	close(exec.release)

	assert.ErrorIs(t, <-done, domain.ErrConflict)
	assert.Equal(t, 2, s.Len())
}

func TestExecuteBulkSkipsUnknownAndExecuted(t *testing.T) {
	s := newTestStore(FixedExecutor{Status: domain.StatusPass})
	ctx := context.Background()

	_, err := s.Execute(ctx, "TC002")
	require.NoError(t, err)

	executed, err := s.ExecuteBulk(ctx, []string{"TC001-aaaa", "TC404", "TC002", "TC001"})
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, "TC001-aaaa", executed[0].UniqueID)
	assert.Equal(t, domain.StatusPass, executed[0].Status)
}

func TestExecuteBulkOneValidOneUnknown(t *testing.T) {
	s := newTestStore(FixedExecutor{})

	executed, err := s.ExecuteBulk(context.Background(), []string{"TC003-cccc", "nope"})
	require.NoError(t, err)
	assert.Len(t, executed, 1)
}

func TestExecuteBulkAllSeeded(t *testing.T) {
	s := NewStore(sampleCases(), NewRandomExecutor(nil, 0), WithConcurrency(2))

	ids := []string{}
	for _, tc := range s.List() {
		ids = append(ids, tc.UniqueID)
	}
	executed, err := s.ExecuteBulk(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, executed, len(ids))
	for _, tc := range s.List() {
		assert.False(t, tc.Status.IsNew())
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(FixedExecutor{})

	require.NoError(t, s.Delete("TC002"))
	assert.Equal(t, 2, s.Len())

	_, err := s.Get("TC002-bbbb")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.Delete("TC002"), domain.ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestDeleteKeepsSharedLegacyIDReachable(t *testing.T) {
	seed := append(sampleCases(), domain.TestCase{TestCaseID: "TC001", UniqueID: "TC001-dddd", Title: "Login again", Status: domain.StatusNew})
	s := NewStore(seed, FixedExecutor{})

	got, err := s.Get("TC001")
	require.NoError(t, err)
	assert.Equal(t, "TC001-aaaa", got.UniqueID)

	require.NoError(t, s.Delete("TC001-aaaa"))

	got, err = s.Get("TC001")
	require.NoError(t, err)
	assert.Equal(t, "TC001-dddd", got.UniqueID)

	require.NoError(t, s.Delete("TC001"))
	_, err = s.Get("TC001")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
