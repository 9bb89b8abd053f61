package activation

import (
	"context"
	"sync"
	"time"

	"daypass/internal/notifications/email"
	"daypass/internal/types"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// memStore is an in-memory schedule/credential store. RunInTx serializes
// transactions and applies buffered writes only when fn succeeds.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	schedules   map[string]*types.ScheduleRecord
	credentials map[string]*types.Credential
	tokens      map[string]*types.AccessToken
	snapshots   map[string]*types.AnalyticsSnapshot
	jobs        map[string]*types.RenewalJob
}

func newMemStore(recs ...*types.ScheduleRecord) *memStore {
	s := &memStore{
		schedules:   map[string]*types.ScheduleRecord{},
		credentials: map[string]*types.Credential{},
		tokens:      map[string]*types.AccessToken{},
		snapshots:   map[string]*types.AnalyticsSnapshot{},
		jobs:        map[string]*types.RenewalJob{},
	}
	for _, r := range recs {
		s.schedules[r.ID] = r
	}
	return s
}

func (s *memStore) schedule(id string) types.ScheduleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.schedules[id]
}

func (s *memStore) credentialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.credentials)
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.IssuanceRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, apply := range tx.writes {
		apply()
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*types.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.schedules[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule record not found", nil)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) IncrementRetry(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.schedules[id]
	r.RetryCount++
	return r.RetryCount, nil
}

func (s *memStore) MarkEscalated(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.schedules[id]
	if r.EscalatedAt != nil {
		return false, nil
	}
	r.EscalatedAt = &at
	return true, nil
}

func (s *memStore) MarkWelcomeSent(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[credentialID].WelcomeEmailSent = true
	return nil
}

type memTx struct {
	store  *memStore
	writes []func()
}

func (t *memTx) LockSchedule(ctx context.Context, id string) (*types.ScheduleRecord, error) {
	return t.store.GetByID(ctx, id)
}

func (t *memTx) MarkProcessed(_ context.Context, id, code string, at time.Time) error {
	t.writes = append(t.writes, func() {
		r := t.store.schedules[id]
		r.IsProcessed = true
		r.ProcessedAt = &at
		r.CreatedCredentialCode = code
	})
	return nil
}

func (t *memTx) CreateCredential(_ context.Context, c *types.Credential) error {
	t.writes = append(t.writes, func() { t.store.credentials[c.ID] = c })
	return nil
}

func (t *memTx) CreateAccessToken(_ context.Context, tok *types.AccessToken) error {
	t.writes = append(t.writes, func() { t.store.tokens[tok.CredentialID] = tok })
	return nil
}

func (t *memTx) CreateSnapshot(_ context.Context, snap *types.AnalyticsSnapshot) error {
	t.writes = append(t.writes, func() {
		cp := *snap
		t.store.snapshots[snap.CredentialID] = &cp
	})
	return nil
}

func (t *memTx) CreateRenewalJob(_ context.Context, j *types.RenewalJob) error {
	t.writes = append(t.writes, func() { t.store.jobs[j.CredentialID] = j })
	return nil
}

type fakeConfigs struct {
	configs map[string]*types.PassConfiguration
}

func (f *fakeConfigs) GetByID(_ context.Context, id string) (*types.PassConfiguration, error) {
	if c, ok := f.configs[id]; ok {
		return c, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundConfiguration, "configuration not found", nil)
}

func (f *fakeConfigs) GetSeller(_ context.Context, id string) (*types.Seller, error) {
	return &types.Seller{ID: id, Name: "Harbor Spa", LocationID: "loc-1"}, nil
}

type fakeWelcome struct {
	mu    sync.Mutex
	calls int
	ok    bool
}

func (f *fakeWelcome) SendWelcome(context.Context, email.WelcomeInput) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.ok
}

type fakeRenewals struct {
	mu   sync.Mutex
	jobs []*types.RenewalJob
	err  error
}

func (f *fakeRenewals) Submit(_ context.Context, job *types.RenewalJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return f.err
}

type fakeAlerter struct {
	mu       sync.Mutex
	warnings []email.OperatorWarning
}

func (f *fakeAlerter) Warn(_ context.Context, w email.OperatorWarning) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, w)
	return true
}

type fakeMetrics struct {
	mu          sync.Mutex
	outcomes    map[types.ActivationStatus]int
	escalations int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{outcomes: map[types.ActivationStatus]int{}}
}

func (f *fakeMetrics) RecordActivation(_ context.Context, s types.ActivationStatus, _ types.IssuanceChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[s]++
}

func (f *fakeMetrics) RecordEscalation(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalations++
}
