package graph

import (
	"fmt"
	"strings"
)

// CycleError reports instances that reference each other in a loop.
type CycleError struct {
	Path   []uint64
	Labels []string
}

func (e CycleError) Error() string {
	var b strings.Builder
	b.WriteString("instance graph contains a cycle:\n\n")

	if len(e.Labels) == 0 {
		b.WriteString("    (unknown)\n")
		return b.String()
	}

	for i, label := range e.Labels {
		b.WriteString(fmt.Sprintf("    %s\n", label))
		if i < len(e.Labels)-1 {
			b.WriteString("      ↓\n")
		}
	}
	b.WriteString("      ↓\n")
	b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Labels[0]))
	return b.String()
}
