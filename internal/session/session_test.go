package session

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadelock/internal/auth"
	"shadelock/internal/credential"
	"shadelock/internal/feedback"
	"shadelock/internal/keymap"
)

type recordingPainter struct {
	fills []feedback.Color
}

func (p *recordingPainter) Fill(c feedback.Color) error {
	p.fills = append(p.fills, c)
	return nil
}

type scriptedAuth struct {
	correct string
	calls   []string
}

func (a *scriptedAuth) Verify(secret string) auth.Verdict {
	a.calls = append(a.calls, secret)
	if secret == a.correct {
		return auth.Correct
	}
	return auth.Incorrect
}

var testPalette = feedback.Palette{
	Idle:    0x000000,
	Typing:  0x005577,
	Success: 0x2e7d32,
	Failure: 0xcc3333,
}

// newTestSession wires a Session around fakes, bypassing the display.
func newTestSession(t *testing.T, correct string) (*Session, *recordingPainter, *scriptedAuth) {
	t.Helper()
	painter := &recordingPainter{}
	verifier := &scriptedAuth{correct: correct}
	return &Session{
		auth: verifier,
		log:  slog.Default(),
		buf:  credential.New(8),
		fb:   feedback.NewMachine(painter, testPalette, 0, slog.Default()),
	}, painter, verifier
}

func press(t *testing.T, s *Session, names ...string) (done bool) {
	t.Helper()
	for _, name := range names {
		var err error
		done, err = s.handleSymbol(keymap.Symbol{Name: name})
		require.NoError(t, err)
	}
	return done
}

func TestCorrectCredentialUnlocks(t *testing.T) {
	s, painter, verifier := newTestSession(t, "abc")

	done := press(t, s, "a", "b", "c", "Return")

	assert.True(t, done)
	assert.Equal(t, []string{"abc"}, verifier.calls)
	assert.Equal(t, feedback.Success, s.fb.State())
	// One typing fill on the first character, then the success fill.
	assert.Equal(t, []feedback.Color{testPalette.Typing, testPalette.Success}, painter.fills)
}

func TestIncorrectCredentialRetries(t *testing.T) {
	s, painter, verifier := newTestSession(t, "right")

	done := press(t, s, "w", "r", "o", "n", "g", "Return")

	assert.False(t, done)
	assert.Equal(t, []string{"wrong"}, verifier.calls)
	assert.Equal(t, 0, s.buf.Len(), "rejected input must not linger")
	assert.Equal(t, feedback.Idle, s.fb.State())
	assert.Equal(t,
		[]feedback.Color{testPalette.Typing, testPalette.Failure, testPalette.Idle},
		painter.fills)

	// The next attempt starts from scratch.
	done = press(t, s, "r", "i", "g", "h", "t", "Return")
	assert.True(t, done)
	assert.Equal(t, []string{"wrong", "right"}, verifier.calls)
}

func TestEmptySubmitIsNoOp(t *testing.T) {
	s, painter, verifier := newTestSession(t, "secret")

	done := press(t, s, "Return", "Return", "KP_Enter")

	assert.False(t, done)
	assert.Empty(t, verifier.calls, "empty submit must not reach the authenticator")
	assert.Empty(t, painter.fills)
	assert.Equal(t, feedback.Idle, s.fb.State())
}

func TestEscapeDiscardsPartialInput(t *testing.T) {
	s, _, verifier := newTestSession(t, "ab")

	done := press(t, s, "a", "b", "Escape", "Return")

	assert.False(t, done)
	assert.Empty(t, verifier.calls, "discarded input must never be submitted")
	assert.Equal(t, 0, s.buf.Len())
	assert.Equal(t, feedback.Idle, s.fb.State())
}

func TestBackspaceEditsAndResetsWhenEmpty(t *testing.T) {
	s, _, verifier := newTestSession(t, "a")

	press(t, s, "a", "x", "BackSpace")
	assert.Equal(t, 1, s.buf.Len())
	assert.Equal(t, feedback.Typing, s.fb.State())

	press(t, s, "BackSpace")
	assert.Equal(t, 0, s.buf.Len())
	assert.Equal(t, feedback.Idle, s.fb.State(), "emptying the buffer returns to idle")

	// Extra backspaces on an empty buffer change nothing.
	done := press(t, s, "BackSpace", "a", "Return")
	assert.True(t, done)
	assert.Equal(t, []string{"a"}, verifier.calls)
}

func TestModifiersDoNotTouchTheBuffer(t *testing.T) {
	s, painter, _ := newTestSession(t, "A")

	press(t, s, "Shift_L", "Caps_Lock")
	assert.Equal(t, 0, s.buf.Len())
	assert.Empty(t, painter.fills)

	done := press(t, s, "A", "Shift_R", "Return")
	assert.True(t, done)
}

func TestUnusableKeyTerminatesAttempt(t *testing.T) {
	s, painter, verifier := newTestSession(t, "ab")

	done := press(t, s, "a", "b", "F1", "Return")

	assert.False(t, done)
	assert.Empty(t, verifier.calls)
	assert.Equal(t, 0, s.buf.Len(), "partial input must not survive an unusable key")
	assert.Equal(t,
		[]feedback.Color{testPalette.Typing, testPalette.Failure, testPalette.Idle},
		painter.fills)
}

func TestUnusableKeyOnEmptyBufferStaysIdle(t *testing.T) {
	s, painter, _ := newTestSession(t, "x")

	done := press(t, s, "F1", "Left", "Delete")

	assert.False(t, done)
	assert.Empty(t, painter.fills, "nothing to discard, nothing to flash")
	assert.Equal(t, feedback.Idle, s.fb.State())
}

func TestOverflowRestartsTheAttempt(t *testing.T) {
	s, _, verifier := newTestSession(t, "i")

	// Capacity is 8; the ninth character clears and restarts the buffer.
	press(t, s, "a", "b", "c", "d", "e", "f", "g", "h", "i")
	assert.Equal(t, 1, s.buf.Len())

	done := press(t, s, "Return")
	assert.True(t, done)
	assert.Equal(t, []string{"i"}, verifier.calls)
}

func TestSpaceAndKeypadInput(t *testing.T) {
	s, _, verifier := newTestSession(t, "a 1")

	done := press(t, s, "a", "space", "KP_1", "Return")

	assert.True(t, done)
	assert.Equal(t, []string{"a 1"}, verifier.calls)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Authenticator: &scriptedAuth{}})
	require.Error(t, err)
}

func TestRunRequiresLock(t *testing.T) {
	s, _, _ := newTestSession(t, "x")
	require.Error(t, s.Run())
}

func TestReleaseRunsExactlyOnce(t *testing.T) {
	s, _, _ := newTestSession(t, "x")
	press(t, s, "a", "b")

	require.NoError(t, s.Release())
	assert.Equal(t, 0, s.buf.Len(), "release wipes any buffered input")

	// Repeated release from other exit paths must be a safe no-op.
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
}
