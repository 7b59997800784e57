package tags

import (
	"fmt"
	"sort"
	"strings"
)

// Serialize renders a forest back into tag markup. Comment nodes render as
// bare text; tag nodes render as <type k="v">content</type>, or
// self-closing when there is no content. Attributes are emitted in sorted
// key order so output is deterministic.
//
// Serialize(Parse(s)) is structurally equivalent to s for well-formed
// input, modulo whitespace trimming; it is primarily a debugging and test
// aid.
func Serialize(nodes []*Node) string {
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		writeNode(&b, n)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	if n.IsComment() {
		b.WriteString(n.Content)
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Type)
	for _, k := range sortedKeys(n.Attrs) {
		fmt.Fprintf(b, " %s=%q", k, n.Attrs[k])
	}
	if n.Content == "" && n.SubTags == nil {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	b.WriteString(n.Content)
	fmt.Fprintf(b, "</%s>", n.Type)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
