// Package versiontest checks version.Store implementations against the
// counter contract.
package versiontest

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"

	"sfinapp/internal/version"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) version.Store) {
	t.Helper()

	t.Run("unknown key starts at zero", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Get(context.Background(), "never-touched")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 0 {
			t.Fatalf("Get = %d, want 0", v)
		}
	})

	t.Run("increment returns new value", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for want := int64(1); want <= 3; want++ {
			got, err := s.Increment(ctx, version.KeyTransaction)
			if err != nil {
				t.Fatalf("Increment: %v", err)
			}
			if got != want {
				t.Fatalf("Increment = %d, want %d", got, want)
			}
		}
		v, err := s.Get(ctx, version.KeyTransaction)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 3 {
			t.Fatalf("Get = %d, want 3", v)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.Increment(ctx, version.KeyAccount); err != nil {
			t.Fatalf("Increment: %v", err)
		}
		v, err := s.Get(ctx, version.KeyTag)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 0 {
			t.Fatalf("tag version = %d, want 0", v)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const workers, perWorker = 8, 25

		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				for j := 0; j < perWorker; j++ {
					if _, err := s.Increment(ctx, version.KeyTransaction); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("Increment: %v", err)
		}

		v, err := s.Get(ctx, version.KeyTransaction)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != workers*perWorker {
			t.Fatalf("Get = %d, want %d", v, workers*perWorker)
		}
	})
}
