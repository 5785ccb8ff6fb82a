package watcher

import "github.com/fsnotify/fsnotify"

// Kind classifies a raw filesystem notification.
type Kind uint8

const (
	// KindOther covers notifications that never warrant a rebuild,
	// such as plain access or permission changes.
	KindOther Kind = iota
	// KindCreate marks a file or directory creation.
	KindCreate
	// KindRemove marks a removal or rename away.
	KindRemove
	// KindModify marks an in-place content change.
	KindModify
	// KindCloseWrite marks a file closed after being opened for writing.
	// Some writers produce this as the only reliable completion signal.
	KindCloseWrite
)

// String renders the kind for logs.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindRemove:
		return "remove"
	case KindModify:
		return "modify"
	case KindCloseWrite:
		return "close-write"
	default:
		return "other"
	}
}

// RawEvent is one notification from the watch primitive. It is ephemeral
// and consumed immediately by the rebuild filter.
type RawEvent struct {
	// Kind is the classified operation.
	Kind Kind
	// Path is the affected filesystem path.
	Path string
}

// IsRebuildWorthy reports whether the event should trigger a rebuild.
// Creations, removals, modifications and close-after-write all qualify;
// everything else is ignored. No debouncing happens here.
func IsRebuildWorthy(event RawEvent) bool {
	switch event.Kind {
	case KindCreate, KindRemove, KindModify, KindCloseWrite:
		return true
	default:
		return false
	}
}

// kindFromOp maps an fsnotify operation bitmask onto a Kind. Renames are
// treated as removals of the watched name; chmod-style notifications are
// never rebuild-worthy.
func kindFromOp(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindRemove
	case op.Has(fsnotify.Write):
		return KindModify
	default:
		return KindOther
	}
}
