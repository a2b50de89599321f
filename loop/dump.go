package loop

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// dumpNamespace roots every Task's ExternalID derivation so Dump output is
// stable across processes for the same xid-based Task.ID — useful for
// correlating dumps against logs shipped elsewhere.
var dumpNamespace = uuid.MustParse("6f1aad92-4a0c-4f1d-9a20-2d8b2d9e6a10")

// ExternalID derives a stable UUID from the Task's internal xid, for
// interop with systems that expect uuid.UUID rather than rs/xid's ID.
func (t *Task) ExternalID() uuid.UUID {
	return uuid.NewSHA1(dumpNamespace, []byte(t.id.String()))
}

// Dump renders t's Task tree as indented text: one line per Task with its
// name, external id, status, and creation site, followed recursively by its
// children. It is an inspection aid, outside the runtime's normal control
// flow.
func Dump(t *Task) string {
	var sb strings.Builder
	dumpNode(&sb, t, 0)
	return sb.String()
}

func dumpNode(sb *strings.Builder, t *Task, depth int) {
	t.mu.Lock()
	children := append([]*Task(nil), t.children...)
	t.mu.Unlock()

	fmt.Fprintf(sb, "%s- %s [%s] %s (%s)\n",
		strings.Repeat("  ", depth), t.name, t.ExternalID(), t.Status(), t.site)
	for _, c := range children {
		dumpNode(sb, c, depth+1)
	}
}
