package keymap

import "unicode"

// Symbol is the resolved identity of a key press: the keysym name as
// reported by the keyboard mapping, e.g. "a", "A", "Return", "Shift_L".
// An empty name means the keycode did not resolve.
type Symbol struct {
	Name string
}

// Kind classifies a Symbol for the session loop.
type Kind int

const (
	// KindUnresolved covers unbound keycodes and symbols with no place
	// in a credential (function keys, arrows). The loop must clear the
	// buffer for these, never ignore them.
	KindUnresolved Kind = iota
	// KindModifier is a modifier-only symbol; ignored by the loop.
	KindModifier
	// KindEnter submits the buffer.
	KindEnter
	// KindEscape clears the buffer and resets feedback.
	KindEscape
	// KindBackspace removes the last character.
	KindBackspace
	// KindText is a printable character; see Symbol.Rune.
	KindText
)

var modifierNames = map[string]struct{}{
	"Shift_L": {}, "Shift_R": {},
	"Control_L": {}, "Control_R": {},
	"Alt_L": {}, "Alt_R": {},
	"Meta_L": {}, "Meta_R": {},
	"Super_L": {}, "Super_R": {},
	"Hyper_L": {}, "Hyper_R": {},
	"Caps_Lock": {}, "Shift_Lock": {},
	"Num_Lock": {}, "Scroll_Lock": {},
	"ISO_Level3_Shift": {}, "ISO_Level5_Shift": {},
	"Mode_switch": {},
}

// keypad symbols that produce characters regardless of their multi-rune
// names.
var keypadRunes = map[string]rune{
	"KP_0": '0', "KP_1": '1', "KP_2": '2', "KP_3": '3', "KP_4": '4',
	"KP_5": '5', "KP_6": '6', "KP_7": '7', "KP_8": '8', "KP_9": '9',
	"KP_Add": '+', "KP_Subtract": '-', "KP_Multiply": '*',
	"KP_Divide": '/', "KP_Decimal": '.', "KP_Separator": ',',
	"KP_Space": ' ', "KP_Equal": '=',
}

// Kind returns the loop classification of the symbol.
func (s Symbol) Kind() Kind {
	switch s.Name {
	case "":
		return KindUnresolved
	case "Return", "KP_Enter":
		return KindEnter
	case "Escape":
		return KindEscape
	case "BackSpace":
		return KindBackspace
	}
	if _, ok := modifierNames[s.Name]; ok {
		return KindModifier
	}
	if _, ok := s.Rune(); ok {
		return KindText
	}
	return KindUnresolved
}

// Rune returns the printable character for a text symbol.
func (s Symbol) Rune() (rune, bool) {
	if s.Name == "space" {
		return ' ', true
	}
	if r, ok := keypadRunes[s.Name]; ok {
		return r, true
	}
	runes := []rune(s.Name)
	if len(runes) == 1 && unicode.IsGraphic(runes[0]) {
		return runes[0], true
	}
	return 0, false
}
