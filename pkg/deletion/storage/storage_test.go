package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

var base = time.Date(2021, 6, 1, 2, 0, 0, 0, time.UTC)

func newBatch(offset time.Duration) deletion.Batch {
	start := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC).Add(offset)
	return deletion.Batch{
		RequestTime: base.Add(offset),
		WindowStart: start,
		WindowEnd:   start.Add(24 * time.Hour),
	}
}

// runStorageContract exercises the behaviour every backend must share.
func runStorageContract(t *testing.T, open func(t *testing.T) deletion.Storage) {
	t.Run("empty store", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		last, err := s.LastBatch(ctx)
		if err != nil {
			t.Fatalf("LastBatch() error = %v", err)
		}
		if last != nil {
			t.Errorf("LastBatch() = %+v, want nil", last)
		}

		list, err := s.List(ctx, 10)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 0 {
			t.Errorf("List() returned %d batches, want 0", len(list))
		}

		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("save assigns ids and round-trips", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		in := newBatch(0)
		first, err := s.Save(ctx, in)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if first.ID == 0 {
			t.Fatal("Save() did not assign an ID")
		}
		second, err := s.Save(ctx, newBatch(time.Hour))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if second.ID <= first.ID {
			t.Errorf("second ID %d not greater than first %d", second.ID, first.ID)
		}

		got, err := s.Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !got.RequestTime.Equal(in.RequestTime) ||
			!got.WindowStart.Equal(in.WindowStart) ||
			!got.WindowEnd.Equal(in.WindowEnd) {
			t.Errorf("Get() = %+v, want times of %+v", got, in)
		}
		if got.IsComplete() || got.RemainingInWindow != nil {
			t.Errorf("new batch has completion data: %+v", got)
		}
	})

	t.Run("historic window round-trips", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		start := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
		in := deletion.Batch{
			RequestTime: base,
			WindowStart: start,
			WindowEnd:   start.Add(24 * time.Hour),
		}
		saved, err := s.Save(ctx, in)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := s.Get(ctx, saved.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !got.WindowStart.Equal(in.WindowStart) || !got.WindowEnd.Equal(in.WindowEnd) {
			t.Errorf("window = [%v, %v), want [%v, %v)", got.WindowStart, got.WindowEnd, in.WindowStart, in.WindowEnd)
		}
	})

	t.Run("last batch is latest request", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		// Saved out of request-time order.
		if _, err := s.Save(ctx, newBatch(2*time.Hour)); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Save(ctx, newBatch(0)); err != nil {
			t.Fatal(err)
		}

		last, err := s.LastBatch(ctx)
		if err != nil {
			t.Fatalf("LastBatch() error = %v", err)
		}
		if !last.RequestTime.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("LastBatch().RequestTime = %v, want %v", last.RequestTime, base.Add(2*time.Hour))
		}
	})

	t.Run("mark complete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, newBatch(0))
		if err != nil {
			t.Fatal(err)
		}
		completedAt := base.Add(3 * time.Hour)

		if err := s.MarkComplete(ctx, saved.ID, completedAt, 42); err != nil {
			t.Fatalf("MarkComplete() error = %v", err)
		}

		got, err := s.Get(ctx, saved.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.CompletionTime == nil || !got.CompletionTime.Equal(completedAt) {
			t.Errorf("CompletionTime = %v, want %v", got.CompletionTime, completedAt)
		}
		if got.RemainingInWindow == nil || *got.RemainingInWindow != 42 {
			t.Errorf("RemainingInWindow = %v, want 42", got.RemainingInWindow)
		}

		err = s.MarkComplete(ctx, saved.ID, completedAt.Add(time.Hour), 0)
		if !errors.Is(err, deletion.ErrBatchAlreadyComplete) {
			t.Errorf("second MarkComplete() error = %v, want ErrBatchAlreadyComplete", err)
		}
		got, _ = s.Get(ctx, saved.ID)
		if *got.RemainingInWindow != 42 {
			t.Errorf("completion data overwritten: remaining = %d", *got.RemainingInWindow)
		}

		if err := s.MarkComplete(ctx, saved.ID+1000, completedAt, 0); !errors.Is(err, deletion.ErrBatchNotFound) {
			t.Errorf("MarkComplete(unknown) error = %v, want ErrBatchNotFound", err)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		s := open(t)
		if _, err := s.Get(context.Background(), 999); !errors.Is(err, deletion.ErrBatchNotFound) {
			t.Errorf("Get() error = %v, want ErrBatchNotFound", err)
		}
	})

	t.Run("list order and limit", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			if _, err := s.Save(ctx, newBatch(time.Duration(i)*time.Hour)); err != nil {
				t.Fatal(err)
			}
		}

		list, err := s.List(ctx, 3)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("List() returned %d batches, want 3", len(list))
		}
		for i := 1; i < len(list); i++ {
			if list[i].RequestTime.After(list[i-1].RequestTime) {
				t.Errorf("List() not in descending request order at %d", i)
			}
		}
		if !list[0].RequestTime.Equal(base.Add(4 * time.Hour)) {
			t.Errorf("List()[0].RequestTime = %v, want newest", list[0].RequestTime)
		}

		all, err := s.List(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 5 {
			t.Errorf("List(0) returned %d batches, want 5", len(all))
		}
	})

	t.Run("returned batches are copies", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, newBatch(0))
		if err != nil {
			t.Fatal(err)
		}
		saved.WindowStart = time.Time{}

		got, _ := s.Get(ctx, saved.ID)
		got.WindowEnd = time.Time{}

		again, _ := s.Get(ctx, saved.ID)
		if again.WindowStart.IsZero() || again.WindowEnd.IsZero() {
			t.Error("mutating a returned batch changed stored state")
		}
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		const n = 10
		var wg sync.WaitGroup
		ids := make(chan int64, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b, err := s.Save(ctx, newBatch(time.Duration(i)*time.Minute))
				if err != nil {
					t.Errorf("Save() error = %v", err)
					return
				}
				ids <- b.ID
			}(i)
		}
		wg.Wait()
		close(ids)

		seen := map[int64]bool{}
		for id := range ids {
			if seen[id] {
				t.Errorf("duplicate ID %d", id)
			}
			seen[id] = true
		}
		if len(seen) != n {
			t.Errorf("got %d distinct IDs, want %d", len(seen), n)
		}
	})
}
