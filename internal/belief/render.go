package belief

import (
	"fmt"
	"sort"
	"strings"
)

type builder struct {
	sb strings.Builder
}

func (b *builder) writeSection(name, body string) {
	if b.sb.Len() > 0 {
		b.sb.WriteString("\n\n")
	}
	fmt.Fprintf(&b.sb, "[%s]\n%s", name, body)
}

func (b *builder) String() string { return b.sb.String() }

// renderTaskContext renders slot key/value pairs in sorted key order so
// output is deterministic across runs.
func renderTaskContext(slots map[string]interface{}) string {
	if len(slots) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, slots[k]))
	}
	return strings.Join(lines, "\n")
}
