package game

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func launchSleeper(t *testing.T) *Process {
	t.Helper()
	script := filepath.Join(t.TempDir(), "launch.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 300\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	p, err := Launch(Config{Interpreter: "sh", LaunchScript: script}, ":1", "u")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return p
}

func TestReapReturnsImmediately(t *testing.T) {
	r := NewReaper(2*time.Second, 2)
	p := launchSleeper(t)

	start := time.Now()
	r.Reap(p)
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Reap blocked on the kill grace")
	}

	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("reaper never terminated the child")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.Close(ctx)
}

func TestCloseWaitsForInFlightKills(t *testing.T) {
	r := NewReaper(time.Second, 2)
	p := launchSleeper(t)
	r.Reap(p)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.Close(ctx)

	select {
	case <-p.Done():
	default:
		t.Fatal("Close returned with the child still alive")
	}
}

func TestReapAfterCloseKillsInline(t *testing.T) {
	r := NewReaper(time.Second, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Close(ctx)

	p := launchSleeper(t)
	r.Reap(p)

	// Inline path: the child is gone by the time Reap returns.
	select {
	case <-p.Done():
	default:
		t.Fatal("post-Close Reap did not kill inline")
	}
}

func TestReapNilIsNoOp(t *testing.T) {
	r := NewReaper(time.Second, 1)
	r.Reap(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Close(ctx)
}
