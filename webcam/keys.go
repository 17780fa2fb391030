package webcam

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

type action int

const (
	actionNone action = iota
	actionQuit
	actionSnapshot
)

const keyEscape = 27

// keyAction maps the code returned by Window.WaitKey to an action.
// WaitKey returns -1 when no key was pressed.
func keyAction(key int) action {
	if key < 0 {
		return actionNone
	}
	switch key & 0xff {
	case keyEscape, 'q', 'Q':
		return actionQuit
	case 's', 'S':
		return actionSnapshot
	}
	return actionNone
}

// snapshotName returns the path of the n-th snapshot of a session.
func snapshotName(dir string, session uuid.UUID, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.png", session, n))
}
