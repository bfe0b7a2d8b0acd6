// Package roomname validates meeting room names before they are embedded in a connection URI.
package roomname

import (
	"errors"
	"fmt"
	"net/url"
)

// MaxLength is the longest accepted room name.
const MaxLength = 99

var ErrInvalidRoomName = errors.New("invalid room name")

// Validate reports whether name uses only ASCII letters, digits, '-', '_' and '.',
// does not start with '.' and is between 1 and MaxLength characters long.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRoomName)
	}
	if len(name) > MaxLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidRoomName, MaxLength)
	}
	// "." and ".." are path dot-segments and would vanish from the connection URI
	if name[0] == '.' {
		return fmt.Errorf("%w: leading '.'", ErrInvalidRoomName)
	}
	for i := 0; i < len(name); i++ {
		if !allowed(name[i]) {
			return fmt.Errorf("%w: character %q at %d", ErrInvalidRoomName, name[i], i)
		}
	}
	return nil
}

// Sanitize maps a display name onto the allowed subset, replacing every other byte and a
// leading '.' with '_', and truncating to MaxLength.
func Sanitize(name string) string {
	b := []byte(name)
	if len(b) > MaxLength {
		b = b[:MaxLength]
	}
	for i := range b {
		if !allowed(b[i]) || (i == 0 && b[i] == '.') {
			b[i] = '_'
		}
	}
	return string(b)
}

// Path returns the websocket path for a validated room name.
func Path(name string) (string, error) {
	if err := Validate(name); err != nil {
		return "", err
	}
	return "/ws/meeting/" + url.PathEscape(name) + "/", nil
}

func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.':
		return true
	}
	return false
}
