package activation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypass/internal/issuer"
	"daypass/internal/types"
)

type fixture struct {
	store    *memStore
	configs  *fakeConfigs
	welcome  *fakeWelcome
	renewals *fakeRenewals
	alerter  *fakeAlerter
	metrics  *fakeMetrics
	orch     *Orchestrator
	ctrl     *Controller
}

func variableConfig(renewal bool) *types.PassConfiguration {
	return &types.PassConfiguration{
		ID:       "cfg-var",
		SellerID: "seller-1",
		Pricing: types.PricingConfig{
			Mode:           types.PricingVariable,
			Base:           decimal.NewFromInt(10),
			GuestIncrement: decimal.NewFromInt(5),
			DayIncrement:   decimal.NewFromInt(3),
		},
		Renewal: types.RenewalConfig{Enabled: renewal},
	}
}

func testRecord(id, configID string, days int) *types.ScheduleRecord {
	return &types.ScheduleRecord{
		ID:              id,
		SellerID:        "seller-1",
		ConfigurationID: configID,
		Channel:         types.ChannelSeller,
		RecipientName:   "Ada",
		RecipientEmail:  "ada@example.com",
		Guests:          2,
		Days:            days,
		DeliveryMethod:  types.DeliveryDirect,
		TargetTime:      testNow.Add(-time.Minute),
	}
}

func newFixture(t *testing.T, renewalOffset time.Duration, now time.Time, recs ...*types.ScheduleRecord) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(recs...),
		configs: &fakeConfigs{configs: map[string]*types.PassConfiguration{
			"cfg-var":      variableConfig(true),
			"cfg-noremind": variableConfig(false),
		}},
		welcome:  &fakeWelcome{ok: true},
		renewals: &fakeRenewals{},
		alerter:  &fakeAlerter{},
		metrics:  newFakeMetrics(),
	}
	clock := fixedClock{t: now}
	f.orch = NewOrchestrator(OrchestratorConfig{
		Tx:             f.store,
		Configurations: f.configs,
		Issuer:         issuer.New(nil, 720*time.Hour, renewalOffset, nil),
		Welcome:        f.welcome,
		Snapshots:      f.store,
		Renewals:       f.renewals,
		Metrics:        f.metrics,
		Clock:          clock,
		StoreTimeout:   time.Second,
	})
	f.ctrl = NewController(ControllerConfig{
		Orchestrator: f.orch,
		Schedules:    f.store,
		Alerter:      f.alerter,
		Metrics:      f.metrics,
		MaxRetries:   DefaultMaxRetries,
		Clock:        clock,
	})
	return f
}

func TestActivate_EndToEnd(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-var", 3))

	out, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationActivated, out.Status)

	cred := out.Credential
	assert.True(t, cred.Cost.Equal(decimal.NewFromInt(21)), "cost %s", cred.Cost)
	assert.Equal(t, testNow.Add(72*time.Hour), cred.ExpiresAt)
	assert.Regexp(t, `^QR-[A-Z2-9]{4}-[A-Z2-9]{4}$`, cred.Code)
	assert.True(t, out.WelcomeSent)
	assert.True(t, out.RenewalScheduled)

	rec := f.store.schedule("sch-1")
	assert.True(t, rec.IsProcessed)
	assert.Equal(t, cred.Code, rec.CreatedCredentialCode)
	assert.Equal(t, testNow, *rec.ProcessedAt)
	assert.Zero(t, rec.RetryCount)

	snap := f.store.snapshots[cred.ID]
	require.NotNil(t, snap)
	assert.True(t, snap.WelcomeEmailSent)
	assert.True(t, snap.RebuyEmailScheduled)
	assert.Equal(t, "loc-1", snap.LocationID)
	assert.Equal(t, types.DeliveryDirect, snap.DeliveryMethod)
	assert.True(t, snap.Pricing.GuestCharge.Equal(decimal.NewFromInt(5)))
	assert.True(t, snap.Pricing.DayCharge.Equal(decimal.NewFromInt(6)))
	assert.NotNil(t, f.store.tokens[cred.ID])

	require.Len(t, f.renewals.jobs, 1)
	assert.Equal(t, cred.ExpiresAt.Add(-12*time.Hour), f.renewals.jobs[0].FireAt)
	assert.Equal(t, 1, f.metrics.outcomes[types.ActivationActivated])
}

func TestActivate_Idempotent(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-var", 3))

	_, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	out, err := f.ctrl.Handle(context.Background(), "sch-1", true)
	require.NoError(t, err)

	assert.Equal(t, types.ActivationAlreadyProcessed, out.Status)
	assert.Equal(t, 1, f.store.credentialCount())
	assert.Equal(t, 1, f.welcome.calls)
	assert.Len(t, f.renewals.jobs, 1)
}

func TestActivate_ConcurrentDuplicatesIssueOnce(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-var", 3))

	var wg sync.WaitGroup
	statuses := make(chan types.ActivationStatus, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.orch.Activate(context.Background(), "sch-1")
			if err == nil {
				statuses <- out.Status
			}
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[types.ActivationStatus]int{}
	for s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[types.ActivationActivated])
	assert.Equal(t, 7, counts[types.ActivationAlreadyProcessed])
	assert.Equal(t, 1, f.store.credentialCount())
}

func TestActivate_RenewalTimeAlreadyPassed(t *testing.T) {
	f := newFixture(t, 36*time.Hour, testNow, testRecord("sch-1", "cfg-var", 1))

	out, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	assert.False(t, out.RenewalScheduled)
	assert.False(t, out.Snapshot.RebuyEmailScheduled)
	assert.Empty(t, f.renewals.jobs)
	assert.Empty(t, f.store.jobs)
}

func TestActivate_RenewalDisabled(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-noremind", 3))

	out, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	assert.False(t, out.Snapshot.RebuyEmailScheduled)
	assert.Empty(t, f.renewals.jobs)
}

func TestActivate_DefaultConfiguration(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", types.DefaultConfigurationID, 2))

	out, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	assert.True(t, out.Credential.Cost.IsZero())
	assert.Empty(t, f.renewals.jobs)
}

func TestActivate_BestEffortStepsDoNotFail(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-var", 3))
	f.welcome.ok = false
	f.renewals.err = errors.New("scheduler unreachable")

	out, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationActivated, out.Status)
	assert.False(t, out.WelcomeSent)
	assert.False(t, out.RenewalScheduled)
	assert.False(t, f.store.snapshots[out.Credential.ID].WelcomeEmailSent)
	assert.True(t, f.store.schedule("sch-1").IsProcessed)
}

func TestActivate_MissingConfigurationWritesNothing(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-gone", 3))

	_, err := f.ctrl.Handle(context.Background(), "sch-1", false)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundConfiguration))
	assert.Zero(t, f.store.credentialCount())
	assert.Empty(t, f.store.snapshots)

	rec := f.store.schedule("sch-1")
	assert.False(t, rec.IsProcessed)
	assert.Zero(t, rec.RetryCount, "first delivery is not a retry")
}

func TestController_MissingRecord(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow)
	_, err := f.ctrl.Handle(context.Background(), "nope", true)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundSchedule))
}

func TestController_RetryEscalatesOnce(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-gone", 3))
	ctx := context.Background()

	// Three failed deliveries: the original and two retries.
	for i, isRetry := range []bool{false, true, true} {
		_, err := f.ctrl.Handle(ctx, "sch-1", isRetry)
		require.Error(t, err, "attempt %d", i)
	}
	rec := f.store.schedule("sch-1")
	assert.Equal(t, 2, rec.RetryCount)
	assert.False(t, rec.IsProcessed)
	require.Len(t, f.alerter.warnings, 1)

	w := f.alerter.warnings[0]
	assert.Equal(t, "sch-1", w.RecordID)
	assert.Equal(t, "seller-1", w.SellerID)
	assert.Equal(t, "ada@example.com", w.Recipient)
	assert.Equal(t, 2, w.RetryCount)
	assert.Equal(t, rec.TargetTime, w.ScheduledFor)

	// Later deliveries neither activate nor warn again.
	late := NewController(ControllerConfig{
		Orchestrator: f.orch,
		Schedules:    f.store,
		Alerter:      f.alerter,
		MaxRetries:   DefaultMaxRetries,
		Clock:        fixedClock{t: testNow},
	})
	out, err := late.Handle(ctx, "sch-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationExhausted, out.Status)
	assert.Len(t, f.alerter.warnings, 1)
	assert.False(t, f.store.schedule("sch-1").IsProcessed)
}

func TestController_OverdueUnderLimitStillActivates(t *testing.T) {
	rec := testRecord("sch-1", "cfg-var", 3)
	rec.TargetTime = testNow.Add(-2 * time.Hour)
	rec.RetryCount = 1
	f := newFixture(t, 12*time.Hour, testNow, rec)

	out, err := f.ctrl.Handle(context.Background(), "sch-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationActivated, out.Status)
	assert.Equal(t, testNow.Add(72*time.Hour), out.Credential.ExpiresAt)
	assert.Equal(t, 1, f.store.schedule("sch-1").RetryCount)
}

func TestController_OverdueExhaustedIsNotAttempted(t *testing.T) {
	rec := testRecord("sch-1", "cfg-var", 3)
	rec.TargetTime = testNow.Add(-10 * time.Minute)
	rec.RetryCount = 2
	f := newFixture(t, 12*time.Hour, testNow, rec)

	out, err := f.ctrl.Handle(context.Background(), "sch-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationExhausted, out.Status)
	assert.Zero(t, f.store.credentialCount())
	assert.Len(t, f.alerter.warnings, 1)
	assert.Equal(t, 1, f.metrics.escalations)
}

func TestController_ExhaustedJustPastTargetIsNotAttempted(t *testing.T) {
	rec := testRecord("sch-1", "cfg-var", 3)
	rec.RetryCount = 2
	f := newFixture(t, 12*time.Hour, testNow, rec)

	out, err := f.ctrl.Handle(context.Background(), "sch-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationExhausted, out.Status)
	assert.Zero(t, f.store.credentialCount())
	assert.False(t, f.store.schedule("sch-1").IsProcessed)
	assert.Len(t, f.alerter.warnings, 1)
}

func TestController_HandleWakeup(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow, testRecord("sch-1", "cfg-var", 3))
	status, err := f.ctrl.HandleWakeup(context.Background(), "sch-1", true)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationActivated, status)

	status, err = f.ctrl.HandleWakeup(context.Background(), "missing", true)
	assert.Error(t, err)
	assert.Equal(t, types.ActivationFailed, status)
}

func TestActivateNow(t *testing.T) {
	f := newFixture(t, 12*time.Hour, testNow)
	order := testRecord("", "cfg-var", 3).Order()
	order.Channel = types.ChannelPayment

	out, err := f.orch.ActivateNow(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, types.ActivationActivated, out.Status)
	assert.Regexp(t, `^PAY-`, out.Credential.Code)
	assert.Empty(t, out.Credential.ScheduleID)
	assert.Equal(t, 1, f.store.credentialCount())
}
