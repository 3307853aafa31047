// Package sshfront exposes the SSH surface: public-key authentication,
// per-channel session wiring, and PTY geometry plumbing into the shared
// admission pool.
package sshfront

import (
	"context"
	"io"
	"strings"

	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"

	"github.com/furrysalamander/ansicraft/internal/capture"
	"github.com/furrysalamander/ansicraft/internal/config"
	"github.com/furrysalamander/ansicraft/internal/game"
	"github.com/furrysalamander/ansicraft/internal/logging"
	"github.com/furrysalamander/ansicraft/internal/monitor"
	"github.com/furrysalamander/ansicraft/internal/queue"
	"github.com/furrysalamander/ansicraft/internal/session"
)

var log = logging.L("sshfront")

// banner is shown during authentication; key-less clients otherwise see only
// an opaque rejection.
const banner = "If you are unable to log in, please be sure to generate a public key first.\n"

// identityLen is how much of the key fingerprint names the user.
const identityLen = 12

// Frontend is the SSH server. All sessions share one admission pool, one
// game reaper, and one monitor registry.
type Frontend struct {
	cfg        *config.Config
	pool       *queue.Pool
	reaper     *game.Reaper
	registry   *monitor.Registry
	sessionCfg session.Config
	srv        *ssh.Server
}

// New builds the frontend, loading or creating the host key.
func New(cfg *config.Config, pool *queue.Pool, reaper *game.Reaper, registry *monitor.Registry) (*Frontend, error) {
	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}

	f := &Frontend{
		cfg:      cfg,
		pool:     pool,
		reaper:   reaper,
		registry: registry,
		sessionCfg: session.Config{
			Capture: capture.Config{
				Binary:     cfg.FFmpegBinary,
				GameWidth:  cfg.GameWidth,
				GameHeight: cfg.GameHeight,
				FrameRate:  cfg.FrameRate,
			},
			Game: game.Config{
				LaunchScript:  cfg.LaunchScript,
				ServerAddress: cfg.ServerAddress,
			},
			GameWidth:     cfg.GameWidth,
			GameHeight:    cfg.GameHeight,
			XdotoolBinary: cfg.XdotoolBinary,
		},
	}

	srv := &ssh.Server{
		Addr:    cfg.ListenAddr,
		Handler: f.handleSession,
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			// Any working key is welcome; the fingerprint is the identity.
			return true
		},
		BannerHandler: func(ctx ssh.Context) string {
			return banner
		},
	}
	srv.AddHostKey(signer)
	f.srv = srv
	return f, nil
}

// ListenAndServe blocks serving SSH connections.
func (f *Frontend) ListenAndServe() error {
	log.Info("listening", "addr", f.cfg.ListenAddr, "maxSessions", f.cfg.MaxSessions)
	return f.srv.ListenAndServe()
}

// Shutdown stops accepting connections and closes active ones.
func (f *Frontend) Shutdown(ctx context.Context) error {
	return f.srv.Shutdown(ctx)
}

// identityFromKey derives the client identity: the first 12 characters of the
// key's SHA-256 fingerprint.
func identityFromKey(key gossh.PublicKey) string {
	fp := strings.TrimPrefix(gossh.FingerprintSHA256(key), "SHA256:")
	if len(fp) > identityLen {
		fp = fp[:identityLen]
	}
	return fp
}

// handleSession runs for each accepted channel and blocks until the session
// ends.
func (f *Frontend) handleSession(s ssh.Session) {
	identity := "anonymous"
	if key := s.PublicKey(); key != nil {
		identity = identityFromKey(key)
	}

	ptyReq, winCh, isPty := s.Pty()
	if !isPty {
		io.WriteString(s, "This service requires an interactive terminal; connect with a PTY.\r\n")
		s.Exit(1)
		return
	}

	log.Info("session opened",
		"identity", identity, "remote", s.RemoteAddr().String(), "cols", ptyReq.Window.Width)

	rt := session.New(identity, s, f.sessionCfg, f.pool, f.reaper)
	rt.Resize(ptyReq.Window.Width)

	f.registry.Add(rt)
	defer f.registry.Remove(rt)

	// Window changes retarget the capture geometry; the channel closes with
	// the session.
	go func() {
		for win := range winCh {
			rt.Resize(win.Width)
		}
	}()

	// The read half feeds the inbound queue; a read error is the channel
	// closing.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := s.Read(buf)
			if n > 0 {
				rt.PushInput(buf[:n])
			}
			if err != nil {
				rt.Stop()
				return
			}
		}
	}()

	// Channel/connection teardown from the transport side.
	go func() {
		<-s.Context().Done()
		rt.Stop()
	}()

	if err := rt.Run(); err != nil {
		log.Warn("session ended with error", "identity", identity, "error", err)
	} else {
		log.Info("session closed", "identity", identity)
	}
	s.Close()
}
