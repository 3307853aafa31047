// Package game launches and supervises the graphical application bound to a
// session's display slot.
package game

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("game")

// Config describes how to start the game for one session.
type Config struct {
	// Interpreter runs the launch script (the reference deployment uses a
	// python3 launcher).
	Interpreter string
	// LaunchScript is the path handed to the interpreter.
	LaunchScript string
	// ServerAddress, when set, is passed through to the launcher.
	ServerAddress string
}

// Process is a running game child. The session tears down when it exits.
type Process struct {
	cmd     *exec.Cmd
	display string
	done    chan struct{}
}

// launchArgs builds the interpreter argument list for a username.
func launchArgs(cfg Config, username string) []string {
	args := []string{cfg.LaunchScript, "--username", username}
	if cfg.ServerAddress != "" {
		args = append(args, "--server", cfg.ServerAddress)
	}
	return args
}

// Launch starts the game bound to display for the given user and returns
// without waiting. A monitor goroutine closes Done when the child exits.
func Launch(cfg Config, display, username string) (*Process, error) {
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	cmd := exec.Command(interpreter, launchArgs(cfg, username)...)
	cmd.Env = append(os.Environ(), "DISPLAY="+display)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("game: launch %s: %w", cfg.LaunchScript, err)
	}
	log.Info("game launched",
		"display", display, "username", username, "pid", cmd.Process.Pid)

	p := &Process{cmd: cmd, display: display, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		log.Info("game exited", "display", display, "error", err)
		close(p.done)
	}()
	return p, nil
}

// Done is closed when the game child exits, however that happens.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Terminate asks the game to exit with SIGTERM and escalates to SIGKILL after
// the grace period. Blocks until the child is gone; sessions hand this to the
// Reaper so teardown is not delayed by the grace.
func (p *Process) Terminate(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}

	p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		log.Warn("game ignored SIGTERM, killing", "display", p.display)
		p.cmd.Process.Kill()
		<-p.done
	}
}
