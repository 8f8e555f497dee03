package session

import (
	"errors"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"shadelock/internal/auth"
	"shadelock/internal/credential"
	"shadelock/internal/display"
	"shadelock/internal/keymap"
)

// pollInterval paces the loop when a stop source forces non-blocking
// event retrieval.
const pollInterval = 25 * time.Millisecond

// Run drives the event loop until the session ends. It returns nil when
// the lock was released legitimately, either by a correct credential or
// by a stop source, and an error only when the display connection fails.
// The caller is responsible for Release on every return path.
func (s *Session) Run() error {
	if !s.locked {
		return errors.New("session: Run called before Lock")
	}

	for {
		ev, err := s.nextEvent()
		if err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
		if ev == nil {
			continue
		}

		done, err := s.handleEvent(ev)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// errStopped marks the stop channel firing; never seen by callers of Run.
var errStopped = errors.New("session: stopped")

// nextEvent retrieves one event. Without a stop source it blocks on the
// connection; with one it alternates a stop check with a non-blocking
// poll so an external unlock is honored even while no keys arrive.
// Protocol errors are logged and swallowed by returning a nil event.
func (s *Session) nextEvent() (xgb.Event, error) {
	if s.stopc == nil {
		ev, err := s.disp.WaitEvent()
		if err != nil {
			return s.eventError(err)
		}
		return ev, nil
	}

	select {
	case <-s.stopc:
		return nil, errStopped
	default:
	}

	ev, err := s.disp.PollEvent()
	if err != nil {
		return s.eventError(err)
	}
	if ev == nil {
		select {
		case <-s.stopc:
			return nil, errStopped
		case <-time.After(pollInterval):
		}
	}
	return ev, nil
}

// eventError classifies a retrieval failure. A lost connection ends the
// loop; a protocol error is logged and skipped.
func (s *Session) eventError(err error) (xgb.Event, error) {
	if errors.Is(err, display.ErrConnClosed) {
		return nil, err
	}
	s.log.Warn("protocol error in event stream", "error", err)
	return nil, nil
}

func (s *Session) handleEvent(ev xgb.Event) (bool, error) {
	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		s.keys.UpdateKey(e.Detail, true)
		return s.handleSymbol(s.keys.Lookup(e.Detail))

	case xproto.KeyReleaseEvent:
		s.keys.UpdateKey(e.Detail, false)

	case xproto.ExposeEvent:
		// The server invalidated our contents; restore the current state
		// color rather than leaving stale framebuffer garbage visible.
		if err := s.fb.Repaint(); err != nil {
			return false, err
		}

	case xproto.MappingNotifyEvent:
		// The keyboard layout changed under us.
		if err := s.keys.Refresh(); err != nil {
			s.log.Warn("keyboard state refresh failed", "error", err)
		}
	}
	return false, nil
}

// handleSymbol applies one resolved key press to the credential buffer
// and the feedback machine. The returned bool reports a successful
// unlock.
func (s *Session) handleSymbol(sym keymap.Symbol) (bool, error) {
	switch sym.Kind() {
	case keymap.KindModifier:
		// Modifier presses change future lookups, never the buffer.
		return false, nil

	case keymap.KindEnter:
		return s.submit()

	case keymap.KindEscape:
		s.buf.Clear()
		return false, s.fb.Reset()

	case keymap.KindBackspace:
		s.buf.Pop()
		if s.buf.Len() == 0 {
			return false, s.fb.Reset()
		}
		return false, nil

	case keymap.KindText:
		r, ok := sym.Rune()
		if !ok {
			return s.terminateAttempt(sym)
		}
		wasEmpty := s.buf.Len() == 0
		s.buf.Push(r)
		if wasEmpty {
			return false, s.fb.Typing()
		}
		return false, nil

	default:
		return s.terminateAttempt(sym)
	}
}

// terminateAttempt handles a key that produces no usable input, such as a
// function or navigation key. Any partial credential is discarded so it
// can never leak into a later attempt; with buffered input the discard is
// surfaced as a failed attempt, otherwise the state simply returns to
// idle.
func (s *Session) terminateAttempt(sym keymap.Symbol) (bool, error) {
	had := s.buf.Len() > 0
	s.buf.Clear()
	if had {
		s.log.Debug("attempt terminated by unusable key", "key", sym.Name)
		return false, s.fb.Show(auth.Incorrect)
	}
	return false, s.fb.Reset()
}

// submit materializes and judges the buffered credential. Submitting an
// empty buffer is a no-op: an accidental Return must neither unlock nor
// flash a failure.
func (s *Session) submit() (bool, error) {
	if s.buf.Len() == 0 {
		return false, nil
	}

	secret, err := s.buf.Materialize()
	s.buf.Clear()
	if err != nil {
		if !errors.Is(err, credential.ErrUndecodable) {
			return false, err
		}
		// Bytes that do not decode cannot be a valid credential. Judged
		// locally with the same feedback as a rejection, so the failure
		// mode is indistinguishable from a wrong password.
		s.log.Debug("submitted input was not decodable")
		return false, s.fb.Show(auth.Incorrect)
	}

	verdict := s.auth.Verify(secret)
	if err := s.fb.Show(verdict); err != nil {
		return false, err
	}
	if verdict == auth.Correct {
		s.log.Info("credential accepted, releasing lock")
		return true, nil
	}
	s.log.Info("credential rejected")
	return false, nil
}
