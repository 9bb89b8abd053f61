package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypass/internal/types"
)

type fakeOverdue struct {
	ids    []string
	err    error
	cutoff time.Time
}

func (f *fakeOverdue) ListOverdue(_ context.Context, cutoff time.Time, _ int) ([]string, error) {
	f.cutoff = cutoff
	return f.ids, f.err
}

type fakeUnsubmitted struct{ jobs []*types.RenewalJob }

func (f *fakeUnsubmitted) ListUnsubmitted(context.Context, int) ([]*types.RenewalJob, error) {
	return f.jobs, nil
}

type fakeActivator struct {
	mu      sync.Mutex
	calls   map[string]bool
	results map[string]types.ActivationStatus
	fail    map[string]bool
}

func (f *fakeActivator) HandleWakeup(_ context.Context, id string, isRetry bool) (types.ActivationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id] = isRetry
	if f.fail[id] {
		return types.ActivationFailed, errors.New("pricing config missing")
	}
	return f.results[id], nil
}

type fakeResubmitter struct {
	mu        sync.Mutex
	submitted []string
	err       error
}

func (f *fakeResubmitter) Submit(_ context.Context, job *types.RenewalJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, job.CredentialID)
	return nil
}

type fakeReminder struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeReminder) Send(_ context.Context, id string) (types.ReminderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return types.ReminderSent, nil
}

func TestSweeper_SweepOverdue(t *testing.T) {
	overdue := &fakeOverdue{ids: []string{"a", "b", "c"}}
	act := &fakeActivator{
		calls:   map[string]bool{},
		results: map[string]types.ActivationStatus{"a": types.ActivationActivated, "b": types.ActivationExhausted},
		fail:    map[string]bool{"c": true},
	}
	s := NewSweeper(SweeperConfig{Schedules: overdue, Activator: act, Grace: 10 * time.Minute, Concurrency: 2})

	res, err := s.Run(context.Background(), TaskSweepOverdue, testNow)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Replayed: 3, Activated: 1, Failed: 1}, res)
	assert.Equal(t, testNow.Add(-10*time.Minute), overdue.cutoff)
	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, act.calls[id], "record %s should be replayed as a retry", id)
	}
}

func TestSweeper_SweepOverdueListError(t *testing.T) {
	s := NewSweeper(SweeperConfig{Schedules: &fakeOverdue{err: errors.New("db down")}})
	_, err := s.Run(context.Background(), TaskSweepOverdue, testNow)
	assert.Error(t, err)
}

func TestSweeper_SweepRenewals(t *testing.T) {
	store := newFakeJobStore()
	resub := &fakeResubmitter{}
	rem := &fakeReminder{}
	s := NewSweeper(SweeperConfig{
		RenewalJobs: &fakeUnsubmitted{jobs: []*types.RenewalJob{
			{CredentialID: "future", FireAt: testNow.Add(time.Hour)},
			{CredentialID: "past", FireAt: testNow.Add(-time.Hour)},
		}},
		JobStore:  store,
		Renewals:  resub,
		Reminders: rem,
	})

	res, err := s.Run(context.Background(), TaskSweepRenewals, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resubmitted)
	assert.Equal(t, 1, res.SentDirect)
	assert.Equal(t, []string{"future"}, resub.submitted)
	assert.Equal(t, []string{"past"}, rem.sent)
	_, closed := store.submitted["past"]
	assert.True(t, closed)
}

func TestSweeper_ResubmitFailureCounts(t *testing.T) {
	s := NewSweeper(SweeperConfig{
		RenewalJobs: &fakeUnsubmitted{jobs: []*types.RenewalJob{{CredentialID: "x", FireAt: testNow.Add(time.Hour)}}},
		JobStore:    newFakeJobStore(),
		Renewals:    &fakeResubmitter{err: errors.New("scheduler down")},
		Reminders:   &fakeReminder{},
	})
	res, err := s.Run(context.Background(), TaskSweepRenewals, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.SentDirect)
}

func TestSweeper_UnknownTask(t *testing.T) {
	_, err := NewSweeper(SweeperConfig{}).Run(context.Background(), "compact", testNow)
	assert.Error(t, err)
}
