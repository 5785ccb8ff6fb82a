package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

// TestIsRebuildWorthy covers the full filter policy: creations, removals,
// modifications and close-after-write trigger rebuilds, nothing else does.
func TestIsRebuildWorthy(t *testing.T) {
	t.Parallel()

	cases := map[Kind]bool{
		KindCreate:     true,
		KindRemove:     true,
		KindModify:     true,
		KindCloseWrite: true,
		KindOther:      false,
	}
	for kind, want := range cases {
		require.Equal(t, want, IsRebuildWorthy(RawEvent{Kind: kind, Path: "src/lib.rs"}),
			"kind %s", kind)
	}
}

// TestKindFromOp verifies the fsnotify mapping, including chmod-style
// notifications landing on the ignorable kind.
func TestKindFromOp(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindCreate, kindFromOp(fsnotify.Create))
	require.Equal(t, KindRemove, kindFromOp(fsnotify.Remove))
	require.Equal(t, KindRemove, kindFromOp(fsnotify.Rename))
	require.Equal(t, KindModify, kindFromOp(fsnotify.Write))
	require.Equal(t, KindOther, kindFromOp(fsnotify.Chmod))

	// Combined operations resolve to the most significant kind.
	require.Equal(t, KindCreate, kindFromOp(fsnotify.Create|fsnotify.Write))
}

// TestKindString keeps log output stable.
func TestKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "close-write", KindCloseWrite.String())
	require.Equal(t, "other", KindOther.String())
}
