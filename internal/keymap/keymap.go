// Package keymap resolves raw keycodes to symbolic keys.
//
// It compiles the X server's keyboard and modifier mappings through
// xgbutil/keybind and layers a live modifier mask on top: every press and
// release is fed in so multi-key combinations resolve correctly. At
// construction the mask is seeded from the server with transient
// (physically held) modifiers forced clear, so a fresh session never
// inherits phantom shift or alt state from input typed moments before the
// grab landed. Lock-class modifiers (Caps, Num) survive the seed and
// toggle on press.
package keymap

import (
	"fmt"
	"log/slog"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/keybind"
)

// lockClassMask covers modifiers that latch server-side rather than being
// held: Lock (caps) and Mod2 (num lock on standard maps).
const lockClassMask = uint16(xproto.ModMaskLock | xproto.ModMask2)

type lookupFunc func(mods uint16, code xproto.Keycode) string

// State is the stateful symbol resolver. It is owned by the session loop;
// one writer, one reader, no locking.
type State struct {
	xu      *xgbutil.XUtil
	mods    uint16
	modBits map[xproto.Keycode]uint16
	lookup  lookupFunc
	log     *slog.Logger
}

// New compiles the server's current keyboard mapping into a resolver and
// synchronizes the modifier mask with transient modifiers cleared.
func New(xu *xgbutil.XUtil, log *slog.Logger) (*State, error) {
	if log == nil {
		log = slog.Default()
	}

	keybind.Initialize(xu)

	s := &State{
		xu:      xu,
		modBits: make(map[xproto.Keycode]uint16),
		lookup: func(mods uint16, code xproto.Keycode) string {
			return keybind.LookupString(xu, mods, code)
		},
		log: log.With("component", "keymap"),
	}
	if err := s.refreshModMap(); err != nil {
		return nil, err
	}
	s.resetTransientMods()
	return s, nil
}

// newForTest builds a State around an injected resolver.
func newForTest(lookup lookupFunc, modBits map[xproto.Keycode]uint16) *State {
	return &State{
		modBits: modBits,
		lookup:  lookup,
		log:     slog.Default(),
	}
}

// refreshModMap rebuilds the keycode → modifier-bit index from the
// server's modifier mapping.
func (s *State) refreshModMap() error {
	modMap := keybind.ModMapGet(s.xu)
	if modMap == nil {
		return fmt.Errorf("keymap: no modifier mapping available")
	}

	clear(s.modBits)
	per := int(modMap.KeycodesPerModifier)
	for mod := 0; mod < 8; mod++ {
		for i := 0; i < per; i++ {
			code := modMap.Keycodes[mod*per+i]
			if code != 0 {
				s.modBits[code] = 1 << uint(mod)
			}
		}
	}
	return nil
}

// resetTransientMods seeds the modifier mask from the live server state,
// keeping only lock-class bits.
func (s *State) resetTransientMods() {
	reply, err := xproto.QueryPointer(s.xu.Conn(), s.xu.RootWin()).Reply()
	if err != nil {
		// Start from nothing held; the first real transition corrects it.
		s.mods = 0
		s.log.Warn("could not query initial modifier state", "error", err)
		return
	}
	s.mods = reply.Mask & lockClassMask
}

// UpdateKey feeds one key transition into the modifier state. Non-modifier
// keycodes are a no-op. Lock-class modifiers toggle on press; held
// modifiers follow press/release.
func (s *State) UpdateKey(code xproto.Keycode, pressed bool) {
	bit, ok := s.modBits[code]
	if !ok {
		return
	}
	if bit&lockClassMask != 0 {
		if pressed {
			s.mods ^= bit
		}
		return
	}
	if pressed {
		s.mods |= bit
	} else {
		s.mods &^= bit
	}
}

// Lookup resolves a keycode to its symbolic key under the current
// modifier state.
func (s *State) Lookup(code xproto.Keycode) Symbol {
	return Symbol{Name: s.lookup(s.mods, code)}
}

// Refresh recompiles the mapping after a MappingNotify, preserving the
// live modifier mask.
func (s *State) Refresh() error {
	keybind.Initialize(s.xu)
	return s.refreshModMap()
}

// Mods exposes the current modifier mask.
func (s *State) Mods() uint16 {
	return s.mods
}
