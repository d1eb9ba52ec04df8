package watcher

import (
	"fmt"
	"time"

	"github.com/rjeczalik/notify"
)

// Kind tags a filesystem change.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindWrite
	KindRemove
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindWrite:
		return "write"
	case KindRemove:
		return "remove"
	case KindRename:
		return "rename"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ChangeEvent is a debounced change to a save file under a watched root.
type ChangeEvent struct {
	Path string
	Kind Kind
	At   time.Time
}

func kindOf(e notify.Event) (Kind, bool) {
	switch {
	case e&notify.Remove != 0:
		return KindRemove, true
	case e&notify.Rename != 0:
		return KindRename, true
	case e&notify.Create != 0:
		return KindCreate, true
	case e&notify.Write != 0:
		return KindWrite, true
	}
	return 0, false
}
