package core

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_ENTER   KeyCode = 0x0D
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_LEFT    KeyCode = 0x25
	KEY_UP      KeyCode = 0x26
	KEY_RIGHT   KeyCode = 0x27
	KEY_DOWN    KeyCode = 0x28
	KEY_A       KeyCode = 0x41
	KEY_D       KeyCode = 0x44
	KEY_P       KeyCode = 0x50
	KEY_S       KeyCode = 0x53
	KEY_W       KeyCode = 0x57

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// InputState holds current and previous keyboard states. It is fed from
// KeyEvents drained by the engine loop.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
}

func NewInputState() *InputState {
	return &InputState{}
}

// Update copies current states to previous states. Call once per frame after
// the game update.
func (is *InputState) Update() {
	is.KeyboardPrevious = is.KeyboardCurrent
}

func (is *InputState) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	is.KeyboardCurrent.Keys[key] = pressed
}

func (is *InputState) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && is.KeyboardCurrent.Keys[key]
}

func (is *InputState) IsKeyUp(key KeyCode) bool {
	return !is.IsKeyDown(key)
}

// WasKeyPressed reports a key that went down since the last Update.
func (is *InputState) WasKeyPressed(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && is.KeyboardCurrent.Keys[key] && !is.KeyboardPrevious.Keys[key]
}
