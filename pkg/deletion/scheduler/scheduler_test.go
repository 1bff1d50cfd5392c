package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/storage"
)

// fakeStore records calls and returns canned results.
type fakeStore struct {
	last    *deletion.Batch
	lastErr error
	saveErr error
	saved   []deletion.Batch
	nextID  int64
	calls   []string
}

func (f *fakeStore) LastBatch(ctx context.Context) (*deletion.Batch, error) {
	f.calls = append(f.calls, "last")
	if f.lastErr != nil {
		return nil, f.lastErr
	}
	if f.last == nil {
		return nil, nil
	}
	return f.last.Clone(), nil
}

func (f *fakeStore) Save(ctx context.Context, batch deletion.Batch) (*deletion.Batch, error) {
	f.calls = append(f.calls, "save")
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.nextID++
	batch.ID = f.nextID
	f.saved = append(f.saved, batch)
	return batch.Clone(), nil
}

type request struct {
	start, end time.Time
	batchID    int64
}

// fakeRequester records every deletion request.
type fakeRequester struct {
	err      error
	requests []request
	store    *fakeStore
}

func (f *fakeRequester) Request(ctx context.Context, start, end time.Time, batchID int64) error {
	if f.store != nil {
		f.store.calls = append(f.store.calls, "request")
	}
	f.requests = append(f.requests, request{start: start, end: end, batchID: batchID})
	return f.err
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

var (
	initialStart = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	day          = 24 * time.Hour
	fixedNow     = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
)

func TestScheduler_Run_NoPreviousBatch(t *testing.T) {
	store := &fakeStore{}
	req := &fakeRequester{}
	s := New(deletion.FixedClock{T: fixedNow},
		deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

	result, err := s.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d batches, want 1", len(store.saved))
	}
	saved := store.saved[0]
	wantEnd := time.Date(2020, 1, 3, 3, 4, 5, 0, time.UTC)
	if !saved.WindowStart.Equal(initialStart) || !saved.WindowEnd.Equal(wantEnd) {
		t.Errorf("saved window = [%v, %v), want [%v, %v)", saved.WindowStart, saved.WindowEnd, initialStart, wantEnd)
	}
	if !saved.RequestTime.Equal(fixedNow) {
		t.Errorf("RequestTime = %v, want %v", saved.RequestTime, fixedNow)
	}
	if saved.CompletionTime != nil || saved.RemainingInWindow != nil {
		t.Error("new batch should have no completion data")
	}

	if len(req.requests) != 1 {
		t.Fatalf("sent %d requests, want 1", len(req.requests))
	}
	got := req.requests[0]
	if !got.start.Equal(initialStart) || !got.end.Equal(wantEnd) || got.batchID != 1 {
		t.Errorf("request = %+v, want window [%v, %v) batch 1", got, initialStart, wantEnd)
	}

	if result.Mode != ModeInitial {
		t.Errorf("Mode = %s, want %s", result.Mode, ModeInitial)
	}
	if result.Batch.ID != 1 {
		t.Errorf("Batch.ID = %d, want 1", result.Batch.ID)
	}
}

func TestScheduler_Run_Windows(t *testing.T) {
	prevStart := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	prevEnd := prevStart.Add(day)

	tests := []struct {
		name      string
		last      *deletion.Batch
		wantStart time.Time
		wantEnd   time.Time
		wantMode  Mode
	}{
		{
			name: "records remain in window - reuse",
			last: &deletion.Batch{
				ID: 7, RequestTime: prevEnd, WindowStart: prevStart, WindowEnd: prevEnd,
				CompletionTime: timePtr(prevEnd.Add(time.Hour)), RemainingInWindow: intPtr(12),
			},
			wantStart: prevStart,
			wantEnd:   prevEnd,
			wantMode:  ModeReuse,
		},
		{
			name: "window exhausted - advance",
			last: &deletion.Batch{
				ID: 7, RequestTime: prevEnd, WindowStart: prevStart, WindowEnd: prevEnd,
				CompletionTime: timePtr(prevEnd.Add(time.Hour)), RemainingInWindow: intPtr(0),
			},
			wantStart: prevEnd,
			wantEnd:   prevEnd.Add(day),
			wantMode:  ModeAdvance,
		},
		{
			name: "remaining not reported - advance",
			last: &deletion.Batch{
				ID: 7, RequestTime: prevEnd, WindowStart: prevStart, WindowEnd: prevEnd,
				CompletionTime: timePtr(prevEnd.Add(time.Hour)),
			},
			wantStart: prevEnd,
			wantEnd:   prevEnd.Add(day),
			wantMode:  ModeAdvance,
		},
		{
			name: "advance uses configured length, not stored window end",
			last: &deletion.Batch{
				ID: 7, RequestTime: prevEnd, WindowStart: prevStart, WindowEnd: prevStart.Add(3 * time.Hour),
				CompletionTime: timePtr(prevEnd), RemainingInWindow: intPtr(0),
			},
			wantStart: prevStart.Add(day),
			wantEnd:   prevStart.Add(2 * day),
			wantMode:  ModeAdvance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{last: tt.last, nextID: tt.last.ID}
			req := &fakeRequester{}
			s := New(deletion.FixedClock{T: fixedNow},
				deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

			result, err := s.Execute(context.Background())
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if result.Mode != tt.wantMode {
				t.Errorf("Mode = %s, want %s", result.Mode, tt.wantMode)
			}
			if !result.Batch.WindowStart.Equal(tt.wantStart) || !result.Batch.WindowEnd.Equal(tt.wantEnd) {
				t.Errorf("window = [%v, %v), want [%v, %v)",
					result.Batch.WindowStart, result.Batch.WindowEnd, tt.wantStart, tt.wantEnd)
			}
			if result.Batch.ID != tt.last.ID+1 {
				t.Errorf("Batch.ID = %d, want %d", result.Batch.ID, tt.last.ID+1)
			}
			if len(req.requests) != 1 || req.requests[0].batchID != result.Batch.ID {
				t.Errorf("requests = %+v, want one for batch %d", req.requests, result.Batch.ID)
			}
		})
	}
}

func TestScheduler_Run_Preconditions(t *testing.T) {
	complete := func(start, end time.Time) *deletion.Batch {
		return &deletion.Batch{
			ID: 3, RequestTime: end, WindowStart: start, WindowEnd: end,
			CompletionTime: timePtr(end), RemainingInWindow: intPtr(0),
		}
	}

	tests := []struct {
		name      string
		config    deletion.WindowConfig
		now       time.Time
		last      *deletion.Batch
		check     func(t *testing.T, err error)
		wantCalls int
	}{
		{
			name:   "zero window length",
			config: deletion.WindowConfig{InitialWindowStart: initialStart},
			now:    fixedNow,
			check: func(t *testing.T, err error) {
				var cfgErr *deletion.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %v, want *ConfigurationError", err)
				}
			},
			wantCalls: 0,
		},
		{
			name:   "negative window length",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: -day},
			now:    fixedNow,
			check: func(t *testing.T, err error) {
				var cfgErr *deletion.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %v, want *ConfigurationError", err)
				}
			},
			wantCalls: 0,
		},
		{
			name:   "previous batch pending",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
			now:    fixedNow,
			last:   &deletion.Batch{ID: 123, RequestTime: fixedNow.Add(-time.Hour), WindowStart: initialStart, WindowEnd: initialStart.Add(day)},
			check: func(t *testing.T, err error) {
				var incErr *deletion.PrecedingBatchIncompleteError
				if !errors.As(err, &incErr) {
					t.Fatalf("error = %v, want *PrecedingBatchIncompleteError", err)
				}
				if incErr.BatchID != 123 {
					t.Errorf("BatchID = %d, want 123", incErr.BatchID)
				}
				if err.Error() != "previous referral (123) did not complete" {
					t.Errorf("Error() = %q", err.Error())
				}
			},
			wantCalls: 1,
		},
		{
			name:   "initial window start in future",
			config: deletion.WindowConfig{InitialWindowStart: fixedNow.Add(time.Minute), WindowLength: day},
			now:    fixedNow,
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundStart {
					t.Errorf("Bound = %s, want start", fErr.Bound)
				}
			},
			wantCalls: 1,
		},
		{
			name:   "initial window end in future",
			config: deletion.WindowConfig{InitialWindowStart: fixedNow.Add(-time.Hour), WindowLength: day},
			now:    fixedNow,
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundEnd {
					t.Errorf("Bound = %s, want end", fErr.Bound)
				}
			},
			wantCalls: 1,
		},
		{
			name:   "advanced window end in future",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
			now:    fixedNow,
			last:   complete(fixedNow.Add(-day-time.Hour), fixedNow.Add(-time.Hour)),
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundEnd {
					t.Errorf("Bound = %s, want end", fErr.Bound)
				}
				if !deletion.IsPrecondition(err) {
					t.Error("IsPrecondition() = false, want true")
				}
			},
			wantCalls: 1,
		},
		{
			name:   "advanced window start in future",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
			now:    fixedNow,
			last:   complete(fixedNow.Add(-time.Hour), fixedNow.Add(day-time.Hour)),
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundStart {
					t.Errorf("Bound = %s, want start", fErr.Bound)
				}
				if !strings.HasPrefix(err.Error(), "deletion due date cannot be in the future, window start date is not valid") {
					t.Errorf("Error() = %q", err.Error())
				}
			},
			wantCalls: 1,
		},
		{
			name:   "reused window start in future",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
			now:    fixedNow,
			last: &deletion.Batch{
				ID: 3, RequestTime: fixedNow.Add(-2 * time.Hour),
				WindowStart: fixedNow.Add(time.Hour), WindowEnd: fixedNow.Add(day),
				CompletionTime: timePtr(fixedNow.Add(-time.Hour)), RemainingInWindow: intPtr(5),
			},
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundStart {
					t.Errorf("Bound = %s, want start", fErr.Bound)
				}
			},
			wantCalls: 1,
		},
		{
			name:   "reused window end in future",
			config: deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day},
			now:    fixedNow,
			last: &deletion.Batch{
				ID: 3, RequestTime: fixedNow.Add(-2 * time.Hour),
				WindowStart: fixedNow.Add(-day), WindowEnd: fixedNow.Add(time.Minute),
				CompletionTime: timePtr(fixedNow.Add(-time.Hour)), RemainingInWindow: intPtr(5),
			},
			check: func(t *testing.T, err error) {
				var fErr *deletion.FutureWindowError
				if !errors.As(err, &fErr) {
					t.Fatalf("error = %v, want *FutureWindowError", err)
				}
				if fErr.Bound != deletion.BoundEnd {
					t.Errorf("Bound = %s, want end", fErr.Bound)
				}
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{last: tt.last}
			req := &fakeRequester{}
			s := New(deletion.FixedClock{T: tt.now}, tt.config, store, req)

			err := s.Run(context.Background())
			if err == nil {
				t.Fatal("Run() error = nil, want error")
			}
			tt.check(t, err)

			if len(store.calls) != tt.wantCalls {
				t.Errorf("store calls = %v, want %d", store.calls, tt.wantCalls)
			}
			if len(store.saved) != 0 {
				t.Errorf("saved %d batches, want 0", len(store.saved))
			}
			if len(req.requests) != 0 {
				t.Errorf("sent %d requests, want 0", len(req.requests))
			}
		})
	}
}

func TestScheduler_Run_WindowEdgeEqualToNow(t *testing.T) {
	now := initialStart.Add(day)
	store := &fakeStore{}
	req := &fakeRequester{}
	s := New(deletion.FixedClock{T: now},
		deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil when window end equals now", err)
	}
	if len(req.requests) != 1 {
		t.Errorf("sent %d requests, want 1", len(req.requests))
	}
}

func TestScheduler_Run_CollaboratorErrors(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("last batch error", func(t *testing.T) {
		store := &fakeStore{lastErr: errBoom}
		req := &fakeRequester{}
		s := New(deletion.FixedClock{T: fixedNow},
			deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

		if err := s.Run(context.Background()); !errors.Is(err, errBoom) {
			t.Errorf("Run() error = %v, want %v", err, errBoom)
		}
		if len(req.requests) != 0 {
			t.Error("request sent after store failure")
		}
	})

	t.Run("save error", func(t *testing.T) {
		store := &fakeStore{saveErr: errBoom}
		req := &fakeRequester{}
		s := New(deletion.FixedClock{T: fixedNow},
			deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

		if err := s.Run(context.Background()); !errors.Is(err, errBoom) {
			t.Errorf("Run() error = %v, want %v", err, errBoom)
		}
		if len(req.requests) != 0 {
			t.Error("request sent after save failure")
		}
	})

	t.Run("request error after save", func(t *testing.T) {
		store := &fakeStore{}
		req := &fakeRequester{err: errBoom, store: store}
		s := New(deletion.FixedClock{T: fixedNow},
			deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

		result, err := s.Execute(context.Background())
		if !errors.Is(err, errBoom) {
			t.Errorf("Execute() error = %v, want %v", err, errBoom)
		}
		if result != nil {
			t.Errorf("result = %+v, want nil", result)
		}
		if len(store.saved) != 1 {
			t.Errorf("saved %d batches, want 1", len(store.saved))
		}
		want := []string{"last", "save", "request"}
		if len(store.calls) != len(want) {
			t.Fatalf("calls = %v, want %v", store.calls, want)
		}
		for i := range want {
			if store.calls[i] != want[i] {
				t.Errorf("calls = %v, want %v", store.calls, want)
				break
			}
		}
	})
}

// Successive runs against a real store walk contiguous windows and stop
// once a pending batch is outstanding.
func TestScheduler_Run_Sequence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	req := &fakeRequester{}
	now := fixedNow
	s := New(deletion.ClockFunc(func() time.Time { return now }),
		deletion.WindowConfig{InitialWindowStart: initialStart, WindowLength: day}, store, req)

	complete := func(id int64, remaining int) {
		t.Helper()
		if err := store.MarkComplete(ctx, id, now, remaining); err != nil {
			t.Fatalf("MarkComplete(%d) error = %v", id, err)
		}
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("run 1: %v", err)
	}

	now = now.Add(time.Hour)
	if err := s.Run(ctx); err == nil {
		t.Fatal("run 2 succeeded with a pending batch")
	}

	complete(1, 5)
	now = now.Add(time.Hour)
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run 3: %v", err)
	}

	complete(2, 0)
	now = now.Add(time.Hour)
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run 4: %v", err)
	}

	if len(req.requests) != 3 {
		t.Fatalf("sent %d requests, want 3", len(req.requests))
	}
	wantStarts := []time.Time{initialStart, initialStart, initialStart.Add(day)}
	for i, want := range wantStarts {
		if !req.requests[i].start.Equal(want) {
			t.Errorf("request %d start = %v, want %v", i, req.requests[i].start, want)
		}
		if got := req.requests[i].end.Sub(req.requests[i].start); got != day {
			t.Errorf("request %d window length = %v, want %v", i, got, day)
		}
		if req.requests[i].batchID != int64(i+1) {
			t.Errorf("request %d batch = %d, want %d", i, req.requests[i].batchID, i+1)
		}
	}
}
