// Package feedback maps session state to overlay color.
//
// The state machine is one-way derived from loop events and carries no
// data beyond the state itself: Idle → Typing → {Success, Failure},
// Failure returning to Idle after a short hold, Success terminal.
package feedback

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"shadelock/internal/auth"
)

// State enumerates the feedback states.
type State int

const (
	// Idle is the base state: empty buffer, base overlay color.
	Idle State = iota
	// Typing is entered on the first buffered character.
	Typing
	// Success is terminal; the session ends while it is displayed.
	Success
	// Failure is held briefly, then falls back to Idle.
	Failure
)

func (s State) String() string {
	switch s {
	case Typing:
		return "typing"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "idle"
	}
}

// Color is a 24-bit 0xRRGGBB pixel value.
type Color uint32

// ParseColor parses a "#rrggbb" string.
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, fmt.Errorf("feedback: %q is not a #rrggbb color", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("feedback: %q is not a #rrggbb color", s)
	}
	return Color(v), nil
}

// Palette holds one color per state.
type Palette struct {
	Idle    Color
	Typing  Color
	Success Color
	Failure Color
}

// ParsePalette builds a Palette from "#rrggbb" strings.
func ParsePalette(idle, typing, success, failure string) (Palette, error) {
	var p Palette
	var err error
	if p.Idle, err = ParseColor(idle); err != nil {
		return Palette{}, err
	}
	if p.Typing, err = ParseColor(typing); err != nil {
		return Palette{}, err
	}
	if p.Success, err = ParseColor(success); err != nil {
		return Palette{}, err
	}
	if p.Failure, err = ParseColor(failure); err != nil {
		return Palette{}, err
	}
	return p, nil
}

// Painter fills the overlay with a color, synchronously: the fill must be
// visible before the next blocking wait begins.
type Painter interface {
	Fill(c Color) error
}

// Machine drives the overlay color from session events.
type Machine struct {
	painter Painter
	palette Palette
	state   State
	hold    time.Duration
	sleep   func(time.Duration)
	log     *slog.Logger
}

// NewMachine returns a Machine in the Idle state. hold is how long a
// verdict color stays visible.
func NewMachine(p Painter, palette Palette, hold time.Duration, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		painter: p,
		palette: palette,
		hold:    hold,
		sleep:   time.Sleep,
		log:     log.With("component", "feedback"),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Typing transitions Idle → Typing. Already typing is a no-op.
func (m *Machine) Typing() error {
	if m.state == Typing {
		return nil
	}
	m.state = Typing
	return m.painter.Fill(m.palette.Typing)
}

// Reset forces the machine back to Idle and restores the base color.
func (m *Machine) Reset() error {
	if m.state == Idle {
		return nil
	}
	m.state = Idle
	return m.painter.Fill(m.palette.Idle)
}

// Show displays the verdict color for the hold duration. Failure then
// falls back to Idle; Success stays terminal.
func (m *Machine) Show(v auth.Verdict) error {
	if v == auth.Correct {
		m.state = Success
		if err := m.painter.Fill(m.palette.Success); err != nil {
			return err
		}
		m.sleep(m.hold)
		return nil
	}

	m.state = Failure
	if err := m.painter.Fill(m.palette.Failure); err != nil {
		return err
	}
	m.sleep(m.hold)
	m.state = Idle
	return m.painter.Fill(m.palette.Idle)
}

// Repaint re-fills the current state's color, for expose notifications.
func (m *Machine) Repaint() error {
	return m.painter.Fill(m.colorFor(m.state))
}

func (m *Machine) colorFor(s State) Color {
	switch s {
	case Typing:
		return m.palette.Typing
	case Success:
		return m.palette.Success
	case Failure:
		return m.palette.Failure
	default:
		return m.palette.Idle
	}
}
