package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadelock/internal/auth"
)

type recordingPainter struct {
	fills []Color
	err   error
}

func (p *recordingPainter) Fill(c Color) error {
	if p.err != nil {
		return p.err
	}
	p.fills = append(p.fills, c)
	return nil
}

var testPalette = Palette{
	Idle:    0x000000,
	Typing:  0x005577,
	Success: 0x2e7d32,
	Failure: 0xcc3333,
}

func newTestMachine(t *testing.T) (*Machine, *recordingPainter, *[]time.Duration) {
	t.Helper()
	p := &recordingPainter{}
	slept := &[]time.Duration{}
	m := NewMachine(p, testPalette, 500*time.Millisecond, nil)
	m.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return m, p, slept
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", 0x000000, false},
		{"#005577", 0x005577, false},
		{"#FFffFF", 0xffffff, false},
		{"005577", 0, true},
		{"#0057", 0, true},
		{"#00557g", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette("#000000", "#005577", "#2e7d32", "#cc3333")
	require.NoError(t, err)
	assert.Equal(t, testPalette, p)

	_, err = ParsePalette("#000000", "nope", "#2e7d32", "#cc3333")
	assert.Error(t, err)
}

func TestStartsIdle(t *testing.T) {
	m, p, _ := newTestMachine(t)
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, p.fills)
}

func TestTypingTransition(t *testing.T) {
	m, p, _ := newTestMachine(t)

	require.NoError(t, m.Typing())
	assert.Equal(t, Typing, m.State())
	assert.Equal(t, []Color{testPalette.Typing}, p.fills)

	// Subsequent characters do not repaint.
	require.NoError(t, m.Typing())
	assert.Len(t, p.fills, 1)
}

func TestResetRestoresIdle(t *testing.T) {
	m, p, _ := newTestMachine(t)

	require.NoError(t, m.Typing())
	require.NoError(t, m.Reset())

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []Color{testPalette.Typing, testPalette.Idle}, p.fills)

	// Reset when already idle paints nothing.
	require.NoError(t, m.Reset())
	assert.Len(t, p.fills, 2)
}

func TestShowFailureFallsBackToIdle(t *testing.T) {
	m, p, slept := newTestMachine(t)
	require.NoError(t, m.Typing())

	require.NoError(t, m.Show(auth.Incorrect))

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []Color{testPalette.Typing, testPalette.Failure, testPalette.Idle}, p.fills)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *slept)
}

func TestShowSuccessIsTerminal(t *testing.T) {
	m, p, slept := newTestMachine(t)
	require.NoError(t, m.Typing())

	require.NoError(t, m.Show(auth.Correct))

	assert.Equal(t, Success, m.State())
	assert.Equal(t, []Color{testPalette.Typing, testPalette.Success}, p.fills)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *slept)
}

func TestRepaintUsesCurrentState(t *testing.T) {
	m, p, _ := newTestMachine(t)

	require.NoError(t, m.Repaint())
	assert.Equal(t, []Color{testPalette.Idle}, p.fills)

	require.NoError(t, m.Typing())
	require.NoError(t, m.Repaint())
	assert.Equal(t, testPalette.Typing, p.fills[len(p.fills)-1])
}

func TestPainterErrorPropagates(t *testing.T) {
	p := &recordingPainter{err: assert.AnError}
	m := NewMachine(p, testPalette, 0, nil)
	m.sleep = func(time.Duration) {}

	assert.ErrorIs(t, m.Typing(), assert.AnError)
	assert.ErrorIs(t, m.Show(auth.Incorrect), assert.AnError)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "typing", Typing.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failure", Failure.String())
}
