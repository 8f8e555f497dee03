package display

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
)

// GrabInput acquires exclusive keyboard and pointer capture bound to the
// overlay. It must only run once the overlay is mapped: a successful grab
// with no visible overlay would intercept keystrokes while the desktop
// still looks unlocked. Either grab failing is fatal to setup: a lock
// that cannot guarantee exclusivity must not pretend to lock.
func (d *Display) GrabInput() error {
	if d.win == 0 {
		return fmt.Errorf("display: grab requested before overlay exists")
	}

	kb, err := xproto.GrabKeyboard(d.conn,
		true, // owner events: deliver through the normal event path
		d.win,
		xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync,
	).Reply()
	if err != nil {
		return fmt.Errorf("display: grab keyboard: %w", err)
	}
	if kb.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("display: grab keyboard: %s", grabStatusString(kb.Status))
	}
	d.push("keyboard grab", func() error {
		return xproto.UngrabKeyboardChecked(d.conn, xproto.TimeCurrentTime).Check()
	})

	ptr, err := xproto.GrabPointer(d.conn,
		false,
		d.win,
		0, // no pointer events wanted, the grab only denies them to others
		xproto.GrabModeAsync, xproto.GrabModeAsync,
		d.win, // confine to the overlay
		d.cursor,
		xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return fmt.Errorf("display: grab pointer: %w", err)
	}
	if ptr.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("display: grab pointer: %s", grabStatusString(ptr.Status))
	}
	d.push("pointer grab", func() error {
		return xproto.UngrabPointerChecked(d.conn, xproto.TimeCurrentTime).Check()
	})

	d.log.Debug("input grabs acquired")
	return nil
}

func grabStatusString(status byte) string {
	switch status {
	case xproto.GrabStatusAlreadyGrabbed:
		return "already grabbed by another client"
	case xproto.GrabStatusInvalidTime:
		return "invalid time"
	case xproto.GrabStatusNotViewable:
		return "grab window not viewable"
	case xproto.GrabStatusFrozen:
		return "device frozen by another grab"
	default:
		return fmt.Sprintf("status %d", status)
	}
}
