package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/storage"
)

type observation struct {
	outcome string
	result  *Result
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) ObserveRun(outcome string, d time.Duration, result *Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{outcome: outcome, result: result})
}

type heldLocker struct{}

func (heldLocker) TryLock(ctx context.Context) (func(), bool, error) {
	return nil, false, nil
}

type brokenLocker struct{ err error }

func (l brokenLocker) TryLock(ctx context.Context) (func(), bool, error) {
	return nil, false, l.err
}

func newTestScheduler(store deletion.BatchStore) *Scheduler {
	return New(deletion.FixedClock{T: fixedNow},
		deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
		store, &fakeRequester{})
}

func TestRunner_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "valid daily schedule",
			schedule:    "0 2 * * *",
			wantRunning: true,
		},
		{
			name:        "valid every 15 minutes",
			schedule:    "*/15 * * * *",
			wantRunning: true,
		},
		{
			name:     "empty schedule - no error, not running",
			schedule: "",
		},
		{
			name:      "invalid schedule",
			schedule:  "not a cron",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(newTestScheduler(storage.NewMemoryStorage()), RunnerConfig{Schedule: tt.schedule})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := r.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if r.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", r.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := r.NextRun()
				if next == nil {
					t.Error("NextRun() returned nil for running runner")
				} else if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
				r.Stop()
				if r.IsRunning() {
					t.Error("IsRunning() = true after Stop()")
				}
			} else if r.NextRun() != nil {
				t.Error("NextRun() should be nil when not scheduled")
			}
		})
	}
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	r := NewRunner(newTestScheduler(storage.NewMemoryStorage()), RunnerConfig{Schedule: "0 2 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("runner still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunner_Trigger(t *testing.T) {
	errLock := errors.New("lock unavailable")

	tests := []struct {
		name        string
		locker      Locker
		prepare     func(t *testing.T, store *storage.MemoryStorage)
		wantErr     error
		wantOutcome string
		wantBatch   bool
	}{
		{
			name:        "success",
			wantOutcome: OutcomeSuccess,
			wantBatch:   true,
		},
		{
			name:        "lock held elsewhere",
			locker:      heldLocker{},
			wantErr:     ErrRunInProgress,
			wantOutcome: OutcomeSkipped,
		},
		{
			name:        "lock error",
			locker:      brokenLocker{err: errLock},
			wantErr:     errLock,
			wantOutcome: OutcomeError,
		},
		{
			name: "pending batch",
			prepare: func(t *testing.T, store *storage.MemoryStorage) {
				_, err := store.Save(context.Background(), deletion.Batch{
					RequestTime: fixedNow.Add(-time.Hour),
					WindowStart: initialStart,
					WindowEnd:   initialStart.Add(day),
				})
				if err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			},
			wantOutcome: OutcomePrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			if tt.prepare != nil {
				tt.prepare(t, store)
			}
			obs := &recordingObserver{}
			r := NewRunner(newTestScheduler(store), RunnerConfig{Locker: tt.locker, Observer: obs})

			result, err := r.Trigger(context.Background())
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Trigger() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantOutcome == OutcomeSuccess && err != nil {
				t.Errorf("Trigger() error = %v, want nil", err)
			}
			if tt.wantOutcome == OutcomePrecondition && !deletion.IsPrecondition(err) {
				t.Errorf("Trigger() error = %v, want precondition failure", err)
			}
			if (result != nil) != tt.wantBatch {
				t.Errorf("Trigger() result = %+v, wantBatch %v", result, tt.wantBatch)
			}

			if len(obs.seen) != 1 {
				t.Fatalf("observed %d runs, want 1", len(obs.seen))
			}
			if obs.seen[0].outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", obs.seen[0].outcome, tt.wantOutcome)
			}
		})
	}
}

func TestRunner_Trigger_ReleasesLock(t *testing.T) {
	store := storage.NewMemoryStorage()
	locker := &LocalLocker{}
	r := NewRunner(newTestScheduler(store), RunnerConfig{Locker: locker})

	if _, err := r.Trigger(context.Background()); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}

	// Second run fails its precondition, but must still be able to take the lock.
	_, err := r.Trigger(context.Background())
	if errors.Is(err, ErrRunInProgress) {
		t.Fatal("lock was not released after the first run")
	}
	var incErr *deletion.PrecedingBatchIncompleteError
	if !errors.As(err, &incErr) {
		t.Errorf("Trigger() error = %v, want *PrecedingBatchIncompleteError", err)
	}
}

func TestLocalLocker(t *testing.T) {
	var l LocalLocker
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock() = (%v, %v), want acquired", ok, err)
	}

	if _, ok, _ := l.TryLock(ctx); ok {
		t.Error("second TryLock() acquired a held lock")
	}

	unlock()
	unlock2, ok, _ := l.TryLock(ctx)
	if !ok {
		t.Fatal("TryLock() after unlock not acquired")
	}
	unlock2()
}

// blockingRequester holds each request until release is closed.
type blockingRequester struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingRequester) Request(ctx context.Context, start, end time.Time, batchID int64) error {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	return ctx.Err()
}

func TestRunner_Trigger_CallerCancelDoesNotAbandonBatch(t *testing.T) {
	store := storage.NewMemoryStorage()
	req := &blockingRequester{started: make(chan struct{}), release: make(chan struct{})}
	s := New(deletion.FixedClock{T: fixedNow},
		deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)
	r := NewRunner(s, RunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Trigger(ctx)
		done <- err
	}()

	<-req.started
	cancel()
	close(req.release)

	if err := <-done; err != nil {
		t.Fatalf("Trigger() error = %v, want nil", err)
	}
	if req.ctxErr != nil {
		t.Errorf("requester context error = %v, want nil", req.ctxErr)
	}

	last, err := store.LastBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.ID != 1 {
		t.Fatalf("LastBatch() = %+v, want batch 1", last)
	}
}
