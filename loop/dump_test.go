package loop

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// names extracts each line's Task name (the token right after the "- "
// marker) from a Dump, in depth-first order, so the assertion is about tree
// shape rather than exact formatting.
func names(dump string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimRight(dump, "\n"), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		if trimmed == "" {
			continue
		}
		if i := strings.IndexByte(trimmed, ' '); i >= 0 {
			out = append(out, trimmed[:i])
		} else {
			out = append(out, trimmed)
		}
	}
	return out
}

// A completed parent has already swept its finished children out of its
// tracked list (the same cleanup that prevents NoOrphan-style leaks), so
// the tree shape is only observable from Dump while the tree is still
// live — here, suspended on eternity handles until the test closes it.
func TestDump_ListsEveryLiveTaskInTheTree(t *testing.T) {
	h := newTestHost(t)
	var child, grandchild *Task

	parent := Run(h, "parent", func(_ *Task, _ ...any) (any, error) {
		child = Run(nil, "child", func(_ *Task, _ ...any) (any, error) {
			grandchild = Run(nil, "grandchild", eternity)
			return Await(grandchild)
		})
		return Await(child)
	})

	want := []string{"parent", "child", "grandchild"}
	got := names(Dump(parent))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Dump tree shape mismatch (-want +got):\n%s", diff)
	}

	parent.Close(nil)
	_, err := parent.Wait(context.Background())
	assertIs(t, err, ErrClosed)
}

func TestDump_ExternalIDIsDeterministicPerTask(t *testing.T) {
	h := newTestHost(t)
	task := Run(h, "stable", func(_ *Task, _ ...any) (any, error) {
		return "ok", nil
	})
	_, err := task.Wait(context.Background())
	assertNoError(t, err)

	first := task.ExternalID()
	second := task.ExternalID()
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Fatalf("ExternalID is not stable across calls (-first +second):\n%s", diff)
	}
}
