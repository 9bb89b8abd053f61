package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"daypass/internal/scheduler"
)

type mockSweeper struct {
	task scheduler.TaskType
	now  time.Time
	res  scheduler.SweepResult
	err  error
}

func (m *mockSweeper) Run(_ context.Context, task scheduler.TaskType, now time.Time) (scheduler.SweepResult, error) {
	m.task = task
	m.now = now
	return m.res, m.err
}

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestHandler(s SweepRunner) *Handler {
	return &Handler{
		Sweeper:  s,
		WorkerID: "worker-test",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return fixedNow },
	}
}

func TestHandle_EmptyTaskRunsEverySweep(t *testing.T) {
	s := &mockSweeper{res: scheduler.SweepResult{Replayed: 2, Activated: 2}}
	h := newTestHandler(s)

	res, err := h.Handle(context.Background(), scheduler.SweepPayload{})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if s.task != scheduler.TaskSweepAll {
		t.Errorf("task = %q, want %q", s.task, scheduler.TaskSweepAll)
	}
	if !s.now.Equal(fixedNow) {
		t.Errorf("now = %v, want %v", s.now, fixedNow)
	}
	if res.Activated != 2 {
		t.Errorf("result not returned: %+v", res)
	}
}

func TestHandle_ReferenceTimeOverridesNow(t *testing.T) {
	s := &mockSweeper{}
	h := newTestHandler(s)
	ref := time.Date(2026, 2, 1, 6, 30, 0, 0, time.FixedZone("CET", 3600))

	if _, err := h.Handle(context.Background(), scheduler.SweepPayload{
		Task:          scheduler.TaskSweepRenewals,
		ReferenceTime: &ref,
	}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if s.task != scheduler.TaskSweepRenewals {
		t.Errorf("task = %q", s.task)
	}
	if !s.now.Equal(ref) || s.now.Location() != time.UTC {
		t.Errorf("now = %v, want %v in UTC", s.now, ref)
	}
}

func TestHandle_WrapsSweepErrors(t *testing.T) {
	boom := errors.New("listing overdue schedules: connection refused")
	h := newTestHandler(&mockSweeper{err: boom})

	_, err := h.Handle(context.Background(), scheduler.SweepPayload{Task: scheduler.TaskSweepOverdue})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped sweep error, got %v", err)
	}
}
