package display

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"shadelock/internal/feedback"
)

// CreateOverlay allocates and maps the full-screen overlay: borderless,
// override-redirect, sized to the screen, subscribed to key-press,
// key-release, and expose events. It blocks until the server delivers the
// first expose so the initial fill cannot race the window manager and
// flash through.
func (d *Display) CreateOverlay() error {
	wid, err := xproto.NewWindowId(d.conn)
	if err != nil {
		return fmt.Errorf("display: allocate window id: %w", err)
	}

	err = xproto.CreateWindowChecked(d.conn,
		d.screen.RootDepth,
		wid,
		d.screen.Root,
		0, 0,
		d.width, d.height,
		0,
		xproto.WindowClassInputOutput,
		d.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{
			d.screen.BlackPixel,
			1, // override-redirect: the window manager must not touch this window
			xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease | xproto.EventMaskExposure,
		},
	).Check()
	if err != nil {
		return fmt.Errorf("display: create overlay window: %w", err)
	}
	d.win = wid
	d.push("overlay window", func() error {
		return xproto.DestroyWindowChecked(d.conn, wid).Check()
	})

	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		return fmt.Errorf("display: allocate gcontext id: %w", err)
	}
	err = xproto.CreateGCChecked(d.conn,
		gc,
		xproto.Drawable(wid),
		xproto.GcForeground,
		[]uint32{d.screen.BlackPixel},
	).Check()
	if err != nil {
		return fmt.Errorf("display: create fill context: %w", err)
	}
	d.gc = gc
	d.push("fill context", func() error {
		return xproto.FreeGCChecked(d.conn, gc).Check()
	})

	if err := xproto.MapWindowChecked(d.conn, wid).Check(); err != nil {
		return fmt.Errorf("display: map overlay window: %w", err)
	}

	if err := d.waitMapped(); err != nil {
		return err
	}

	d.log.Debug("overlay mapped", "window", uint32(wid))
	return nil
}

// waitMapped blocks until the first expose confirms the overlay is
// actually rendered.
func (d *Display) waitMapped() error {
	for {
		ev, err := d.WaitEvent()
		if err != nil {
			if err == ErrConnClosed {
				return fmt.Errorf("display: connection lost before overlay was exposed")
			}
			// Protocol errors while waiting are logged, not fatal.
			d.log.Warn("error while waiting for expose", "error", err)
			continue
		}
		if _, ok := ev.(xproto.ExposeEvent); ok {
			return nil
		}
	}
}

// HideCursor builds the invisible pointer glyph: a blank character from
// the standard cursor font with fore and back colors both zero.
func (d *Display) HideCursor() error {
	font, err := xproto.NewFontId(d.conn)
	if err != nil {
		return fmt.Errorf("display: allocate font id: %w", err)
	}
	const fontName = "cursor"
	if err := xproto.OpenFontChecked(d.conn, font, uint16(len(fontName)), fontName).Check(); err != nil {
		return fmt.Errorf("display: open cursor font: %w", err)
	}

	cursor, err := xproto.NewCursorId(d.conn)
	if err != nil {
		xproto.CloseFont(d.conn, font)
		return fmt.Errorf("display: allocate cursor id: %w", err)
	}
	err = xproto.CreateGlyphCursorChecked(d.conn,
		cursor,
		font, font,
		' ', ' ',
		0, 0, 0,
		0, 0, 0,
	).Check()
	// The font is only needed to build the glyph.
	xproto.CloseFont(d.conn, font)
	if err != nil {
		return fmt.Errorf("display: create invisible cursor: %w", err)
	}

	d.cursor = cursor
	d.push("cursor glyph", func() error {
		return xproto.FreeCursorChecked(d.conn, cursor).Check()
	})
	return nil
}

// Fill paints the entire overlay with one color using a single rectangle
// fill, then forces a round trip so the change is visible before the next
// blocking wait. Implements feedback.Painter.
func (d *Display) Fill(c feedback.Color) error {
	if d.win == 0 {
		return fmt.Errorf("display: fill before overlay exists")
	}

	xproto.ChangeGC(d.conn, d.gc, xproto.GcForeground, []uint32{uint32(c)})
	err := xproto.PolyFillRectangleChecked(d.conn,
		xproto.Drawable(d.win),
		d.gc,
		[]xproto.Rectangle{{X: 0, Y: 0, Width: d.width, Height: d.height}},
	).Check()
	if err != nil {
		return fmt.Errorf("display: fill overlay: %w", err)
	}
	d.conn.Sync()
	return nil
}
