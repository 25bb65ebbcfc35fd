package revstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewLocalRevStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	// missing -> 0
	if r, err := s.Snapshot(ctx, "a"); err != nil || r != 0 {
		t.Fatalf("missing key: rev=%d err=%v", r, err)
	}

	// bump b twice -> rev=2
	if _, err := s.Bump(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if r, err := s.Bump(ctx, "b"); err != nil || r != 2 {
		t.Fatalf("second bump: rev=%d err=%v", r, err)
	}
	if r, _ := s.Snapshot(ctx, "b"); r != 2 {
		t.Fatalf("snapshot after bumps: rev=%d", r)
	}
	// a is untouched
	if r, _ := s.Snapshot(ctx, "a"); r != 0 {
		t.Fatalf("unrelated key moved: rev=%d", r)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocalRevStore(0, time.Second) // retention=1s
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	r, err := s.Snapshot(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if r != 0 {
		t.Fatalf("expected pruned -> 0, got %d", r)
	}
}

func TestLocalCloseStopsSweeper(t *testing.T) {
	ctx := context.Background()
	s := NewLocalRevStore(10*time.Millisecond, time.Minute)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
