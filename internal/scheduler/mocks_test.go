package scheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"daypass/internal/external"
	"daypass/internal/types"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestBaseClient(c *http.Client, retries int) *external.BaseClient {
	return external.NewBaseClient(c, "scheduler-test",
		external.RetryPolicy{MaxRetries: retries, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"daypass-test",
		external.WithSleepFunc(noopSleep),
		external.WithUpstreamCode(types.ErrCodeUpstreamScheduler),
	)
}

type fakeSQS struct {
	mu    sync.Mutex
	calls []*sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-msg-1")}, nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (f *fakeScheduler) Schedule(_ context.Context, job Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "job-1", nil
}

type fakeJobStore struct {
	mu        sync.Mutex
	submitted map[string]string
	failures  map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{submitted: map[string]string{}, failures: map[string]string{}}
}

func (f *fakeJobStore) MarkSubmitted(_ context.Context, id, jobID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted[id] = jobID
	return nil
}

func (f *fakeJobStore) RecordFailure(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = reason
	return nil
}
