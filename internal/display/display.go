// Package display wraps the X connection and owns every server-side
// resource of the lock session: the overlay window, the fill context, the
// invisible cursor, and the input grabs.
//
// Acquisition is staged: each successfully acquired resource records its
// release action, and Close walks the completed stages in reverse. A
// partially failed setup therefore tears down exactly what it acquired,
// and teardown is best-effort: every release is attempted even when an
// earlier one fails.
package display

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
)

// ErrConnClosed is returned by event retrieval once the server connection
// is gone.
var ErrConnClosed = errors.New("display: connection closed")

type stage struct {
	name    string
	release func() error
}

// Display is the process-wide display connection and its resources.
// Exactly one exists per session; the session loop is its only user.
type Display struct {
	X      *xgbutil.XUtil
	conn   *xgb.Conn
	screen *xproto.ScreenInfo

	win    xproto.Window
	gc     xproto.Gcontext
	cursor xproto.Cursor

	width  uint16
	height uint16

	stages    []stage
	closeOnce sync.Once
	log       *slog.Logger
}

// Open connects to the X server and resolves the target screen.
// name is the display string; empty uses DISPLAY. screenIdx -1 selects the
// connection's default screen.
func Open(name string, screenIdx int, log *slog.Logger) (*Display, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("display: connect: %w", err)
	}

	d := &Display{
		conn: conn,
		log:  log.With("component", "display"),
	}
	d.push("connection", func() error {
		conn.Close()
		return nil
	})

	xu, err := xgbutil.NewConnXgb(conn)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("display: xgbutil: %w", err)
	}
	d.X = xu

	setup := xproto.Setup(conn)
	if screenIdx < 0 {
		screenIdx = conn.DefaultScreen
	}
	if screenIdx >= len(setup.Roots) {
		d.Close()
		return nil, fmt.Errorf("display: screen %d out of range (server has %d)",
			screenIdx, len(setup.Roots))
	}
	d.screen = &setup.Roots[screenIdx]
	d.width = d.screen.WidthInPixels
	d.height = d.screen.HeightInPixels

	d.log.Debug("connected",
		"screen", screenIdx,
		"width", d.width,
		"height", d.height,
	)
	return d, nil
}

// push records a completed acquisition stage.
func (d *Display) push(name string, release func() error) {
	d.stages = append(d.stages, stage{name: name, release: release})
}

// Screen returns the resolved target screen.
func (d *Display) Screen() *xproto.ScreenInfo {
	return d.screen
}

// WaitEvent blocks for the next event. A protocol error is returned with
// a nil event and is not fatal; (nil, ErrConnClosed) means the connection
// is gone.
func (d *Display) WaitEvent() (xgb.Event, error) {
	ev, xerr := d.conn.WaitForEvent()
	if ev == nil && xerr == nil {
		return nil, ErrConnClosed
	}
	if xerr != nil {
		return nil, fmt.Errorf("display: protocol error: %s", xerr.Error())
	}
	return ev, nil
}

// PollEvent is the non-blocking variant of WaitEvent. It returns
// (nil, nil) when no event is pending.
func (d *Display) PollEvent() (xgb.Event, error) {
	ev, xerr := d.conn.PollForEvent()
	if xerr != nil {
		return nil, fmt.Errorf("display: protocol error: %s", xerr.Error())
	}
	return ev, nil
}

// Flush forces a round trip so every queued request is processed before
// the caller blocks.
func (d *Display) Flush() {
	d.conn.Sync()
}

// Close releases every acquired resource in reverse order, exactly once.
// Individual failures do not stop the remaining steps.
func (d *Display) Close() error {
	var err error
	d.closeOnce.Do(func() {
		for i := len(d.stages) - 1; i >= 0; i-- {
			s := d.stages[i]
			if rerr := s.release(); rerr != nil {
				err = errors.Join(err, fmt.Errorf("release %s: %w", s.name, rerr))
			}
		}
		d.stages = nil
	})
	return err
}
