package game

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLaunchArgs(t *testing.T) {
	cfg := Config{LaunchScript: "/opt/launch.py"}
	got := launchArgs(cfg, "a1b2c3d4e5f6")
	want := []string{"/opt/launch.py", "--username", "a1b2c3d4e5f6"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestLaunchArgsWithServer(t *testing.T) {
	cfg := Config{LaunchScript: "/opt/launch.py", ServerAddress: "mc.example.com:25565"}
	got := launchArgs(cfg, "u")
	want := []string{"/opt/launch.py", "--username", "u", "--server", "mc.example.com:25565"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestDoneClosesWhenChildExits(t *testing.T) {
	// "true" ignores the launcher-style arguments and exits immediately.
	p, err := Launch(Config{Interpreter: "true", LaunchScript: "noop"}, ":1", "u")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after child exit")
	}

	// Terminating an already-exited child returns immediately.
	start := time.Now()
	p.Terminate(5 * time.Second)
	if time.Since(start) > time.Second {
		t.Fatal("Terminate blocked on an exited child")
	}
}

func TestTerminateKillsLongRunningChild(t *testing.T) {
	script := filepath.Join(t.TempDir(), "launch.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 300\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	p, err := Launch(Config{Interpreter: "sh", LaunchScript: script}, ":1", "u")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Terminate(2 * time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Terminate did not stop the child")
	}
}

func TestLaunchMissingInterpreterFails(t *testing.T) {
	if _, err := Launch(Config{Interpreter: "definitely-not-a-binary-xyz", LaunchScript: "x"}, ":1", "u"); err == nil {
		t.Fatal("Launch with a missing interpreter should fail")
	}
}
