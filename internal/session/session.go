// Package session implements the lock session state machine.
//
// A Session owns the display resources, the keyboard state, the
// credential buffer, and the feedback machine, and drives the
// authenticate-or-retry cycle from a single blocking event loop. Exactly
// one Session exists per process; every mutable structure below it has
// the loop as its only reader and writer.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shadelock/internal/auth"
	"shadelock/internal/config"
	"shadelock/internal/credential"
	"shadelock/internal/display"
	"shadelock/internal/feedback"
	"shadelock/internal/keymap"
)

// Options configures a Session.
type Options struct {
	// Config is the validated locker configuration.
	Config *config.Config

	// Authenticator judges submitted credentials.
	Authenticator auth.Authenticator

	// Stop optionally ends the session from outside, e.g. a logind
	// Unlock signal. Checked non-blockingly between event polls.
	Stop <-chan struct{}

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is the root entity of the lock. No method besides Lock and
// Release may run before Lock has mapped the overlay and acquired the
// grabs.
type Session struct {
	cfg  *config.Config
	auth auth.Authenticator
	log  *slog.Logger

	disp *display.Display
	keys *keymap.State
	buf  *credential.Buffer
	fb   *feedback.Machine

	stopc chan struct{}
	done  chan struct{}

	releaseOnce sync.Once
	locked      bool
}

// New builds an unlocked Session. Call Lock to acquire the screen.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session: config is required")
	}
	if opts.Authenticator == nil {
		return nil, errors.New("session: authenticator is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		cfg:  opts.Config,
		auth: opts.Authenticator,
		log:  log.With("component", "session"),
		buf:  credential.New(opts.Config.Input.MaxLength),
		done: make(chan struct{}),
	}

	if opts.Config.Session.UnlockAfter() > 0 || opts.Stop != nil {
		s.stopc = make(chan struct{}, 1)
		go s.watchStop(opts.Stop)
	}

	return s, nil
}

// watchStop forwards the first external stop source into the one-shot
// stop channel.
func (s *Session) watchStop(external <-chan struct{}) {
	var timerC <-chan time.Time
	if d := s.cfg.Session.UnlockAfter(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-timerC:
		s.log.Warn("hard session timeout reached, ending session",
			"after", s.cfg.Session.UnlockAfter())
	case <-external:
		s.log.Info("external stop signal received")
	case <-s.done:
		return
	}
	s.stopc <- struct{}{}
}

// Lock seizes the screen. The order is load-bearing: the overlay must
// exist and be mapped before the grabs are requested, and everything must
// be flushed before the first blocking wait.
func (s *Session) Lock() error {
	if s.locked {
		return errors.New("session: already locked")
	}

	palette, err := feedback.ParsePalette(
		s.cfg.Colors.Idle,
		s.cfg.Colors.Typing,
		s.cfg.Colors.Success,
		s.cfg.Colors.Failure,
	)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	d, err := display.Open(s.cfg.Display.Name, s.cfg.Display.Screen, s.log)
	if err != nil {
		return err
	}
	s.disp = d

	if err := d.CreateOverlay(); err != nil {
		return s.abortSetup(err)
	}
	if err := d.HideCursor(); err != nil {
		return s.abortSetup(err)
	}

	keys, err := keymap.New(d.X, s.log)
	if err != nil {
		return s.abortSetup(fmt.Errorf("session: compile keyboard state: %w", err))
	}
	s.keys = keys

	if err := d.GrabInput(); err != nil {
		return s.abortSetup(err)
	}

	s.fb = feedback.NewMachine(d, palette, s.cfg.Colors.Hold(), s.log)
	if err := s.fb.Repaint(); err != nil {
		return s.abortSetup(err)
	}
	d.Flush()

	s.locked = true
	s.log.Info("screen locked")
	return nil
}

// abortSetup tears down the partially acquired resources and reports the
// original failure. Partial setup must never be presented as "locked".
func (s *Session) abortSetup(err error) error {
	if rerr := s.Release(); rerr != nil {
		s.log.Warn("teardown after failed setup reported errors", "error", rerr)
	}
	return err
}

// Release tears down grabs, overlay, and connection. It runs exactly once
// no matter how often it is called or which exit path reaches it, and
// every release step is attempted even if an earlier one fails.
func (s *Session) Release() error {
	var err error
	s.releaseOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
		if s.disp != nil {
			err = s.disp.Close()
		}
		s.buf.Clear()
		s.locked = false
		s.log.Info("session released")
	})
	return err
}
