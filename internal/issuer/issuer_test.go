package issuer

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypass/internal/types"
)

type fakeRepos struct {
	codes        map[string]bool
	credentials  []*types.Credential
	tokens       []*types.AccessToken
	snapshots    []*types.AnalyticsSnapshot
	renewalJobs  []*types.RenewalJob
	snapshotErr  error
	credentialFn func(c *types.Credential) error
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{codes: make(map[string]bool)}
}

func (f *fakeRepos) LockSchedule(context.Context, string) (*types.ScheduleRecord, error) {
	return nil, errors.New("not used")
}

func (f *fakeRepos) MarkProcessed(context.Context, string, string, time.Time) error { return nil }

func (f *fakeRepos) CreateCredential(_ context.Context, c *types.Credential) error {
	if f.credentialFn != nil {
		if err := f.credentialFn(c); err != nil {
			return err
		}
	}
	if f.codes[c.Code] {
		return types.NewAppError(types.ErrCodeConflictDuplicateCode, "dup", nil)
	}
	f.codes[c.Code] = true
	cp := *c
	f.credentials = append(f.credentials, &cp)
	return nil
}

func (f *fakeRepos) CreateAccessToken(_ context.Context, t *types.AccessToken) error {
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeRepos) CreateSnapshot(_ context.Context, s *types.AnalyticsSnapshot) error {
	if f.snapshotErr != nil {
		return f.snapshotErr
	}
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeRepos) CreateRenewalJob(_ context.Context, j *types.RenewalJob) error {
	f.renewalJobs = append(f.renewalJobs, j)
	return nil
}

// sequenceGenerator returns codes in order, then repeats the last one.
type sequenceGenerator struct {
	codes []string
	idx   int
}

func (g *sequenceGenerator) Code(prefix string) (string, error) {
	c := g.codes[g.idx]
	if g.idx < len(g.codes)-1 {
		g.idx++
	}
	return prefix + "-" + c, nil
}

func (g *sequenceGenerator) Token() (string, error) { return "token-value", nil }

func testInput(issuedAt time.Time) Input {
	return Input{
		Order: types.PassOrder{
			ScheduleID:      "sch-1",
			SellerID:        "seller-1",
			ConfigurationID: "cfg-1",
			Channel:         types.ChannelSeller,
			RecipientName:   "Ada",
			RecipientEmail:  "ada@example.com",
			Guests:          2,
			Days:            3,
			DeliveryMethod:  types.DeliveryDirect,
		},
		Pricing:        types.PriceBreakdown{Mode: types.PricingVariable, Total: decimal.NewFromInt(21)},
		Seller:         &types.Seller{ID: "seller-1", LocationID: "loc-9", DistributorID: "dist-4"},
		IssuedAt:       issuedAt,
		RenewalEnabled: true,
	}
}

func TestIssue_WritesTripleAndRenewalJob(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repos := newFakeRepos()
	iss := New(nil, 30*24*time.Hour, 12*time.Hour, nil)

	res, err := iss.Issue(context.Background(), repos, testInput(issuedAt))
	require.NoError(t, err)

	cred := res.Credential
	assert.Equal(t, issuedAt.Add(72*time.Hour), cred.ExpiresAt)
	assert.True(t, cred.Cost.Equal(decimal.NewFromInt(21)))
	assert.True(t, cred.Active)
	assert.Regexp(t, regexp.MustCompile(`^QR-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`), cred.Code)

	require.Len(t, repos.tokens, 1)
	assert.Equal(t, cred.ID, repos.tokens[0].CredentialID)
	assert.Equal(t, issuedAt.Add(30*24*time.Hour), repos.tokens[0].ExpiresAt)

	require.Len(t, repos.snapshots, 1)
	snap := repos.snapshots[0]
	assert.Equal(t, cred.ID, snap.CredentialID)
	assert.Equal(t, "loc-9", snap.LocationID)
	assert.Equal(t, "dist-4", snap.DistributorID)
	assert.Equal(t, types.DeliveryDirect, snap.DeliveryMethod)
	assert.True(t, snap.Pricing.Total.Equal(decimal.NewFromInt(21)))
	assert.False(t, snap.WelcomeEmailSent)
	assert.True(t, snap.RebuyEmailScheduled)

	require.Len(t, repos.renewalJobs, 1)
	assert.Equal(t, cred.ExpiresAt.Add(-12*time.Hour), repos.renewalJobs[0].FireAt)
	assert.Same(t, res.RenewalJob, repos.renewalJobs[0])
}

func TestIssue_PaymentChannelPrefix(t *testing.T) {
	in := testInput(time.Now().UTC())
	in.Order.Channel = types.ChannelPayment

	res, err := New(nil, time.Hour, 12*time.Hour, nil).Issue(context.Background(), newFakeRepos(), in)
	require.NoError(t, err)
	assert.Regexp(t, `^PAY-`, res.Credential.Code)
}

func TestIssue_RenewalAlreadyPastIsSkipped(t *testing.T) {
	in := testInput(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	in.Order.Days = 1
	repos := newFakeRepos()

	// A 1-day pass with a 36h offset would need a reminder before issuance.
	res, err := New(nil, time.Hour, 36*time.Hour, nil).Issue(context.Background(), repos, in)
	require.NoError(t, err)

	assert.Nil(t, res.RenewalJob)
	assert.Empty(t, repos.renewalJobs)
	assert.False(t, repos.snapshots[0].RebuyEmailScheduled)
}

func TestIssue_RenewalDisabled(t *testing.T) {
	in := testInput(time.Now().UTC())
	in.RenewalEnabled = false
	repos := newFakeRepos()

	res, err := New(nil, time.Hour, 12*time.Hour, nil).Issue(context.Background(), repos, in)
	require.NoError(t, err)
	assert.Nil(t, res.RenewalJob)
	assert.False(t, res.Snapshot.RebuyEmailScheduled)
}

func TestIssue_RetriesCodeCollision(t *testing.T) {
	repos := newFakeRepos()
	repos.codes["QR-TAKEN"] = true
	gen := &sequenceGenerator{codes: []string{"TAKEN", "FRESH"}}

	res, err := New(gen, time.Hour, 12*time.Hour, nil).Issue(context.Background(), repos, testInput(time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, "QR-FRESH", res.Credential.Code)
	assert.Len(t, repos.credentials, 1)
}

func TestIssue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repos := newFakeRepos()
	repos.codes["QR-TAKEN"] = true
	gen := &sequenceGenerator{codes: []string{"TAKEN"}}

	_, err := New(gen, time.Hour, 12*time.Hour, nil).Issue(context.Background(), repos, testInput(time.Now().UTC()))
	assert.True(t, types.IsCode(err, types.ErrCodeInternalUnexpected))
	assert.Empty(t, repos.snapshots)
}

func TestIssue_SnapshotFailureAborts(t *testing.T) {
	repos := newFakeRepos()
	repos.snapshotErr = types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil)

	res, err := New(nil, time.Hour, 12*time.Hour, nil).Issue(context.Background(), repos, testInput(time.Now().UTC()))
	assert.Nil(t, res)
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	assert.Empty(t, repos.renewalJobs)
}

func TestIssue_CredentialErrorPropagates(t *testing.T) {
	repos := newFakeRepos()
	repos.credentialFn = func(*types.Credential) error {
		return types.NewAppError(types.ErrCodeInternalDB, "down", nil)
	}

	_, err := New(nil, time.Hour, 12*time.Hour, nil).Issue(context.Background(), repos, testInput(time.Now().UTC()))
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	assert.Empty(t, repos.tokens)
}

func TestRenewalFireAt(t *testing.T) {
	iss := New(nil, time.Hour, 12*time.Hour, nil)
	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	fire, ok := iss.RenewalFireAt(issued, issued.Add(24*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, issued.Add(12*time.Hour), fire)

	_, ok = iss.RenewalFireAt(issued, issued.Add(12*time.Hour))
	assert.False(t, ok)
}
