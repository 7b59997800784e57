package tags

import "go.uber.org/zap"

// Options controls unfolding.
type Options struct {
	// IgnoreContainers lists tag types whose nested markup must stay intact
	// as a single opaque block (e.g. a planning/context tag inspected
	// separately later).
	IgnoreContainers []string
	// TrimEmpty lists tag types that are dropped entirely when their final
	// content is empty after unfolding.
	TrimEmpty []string
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Unfold normalizes a parsed forest: nested tags are promoted to top-level
// siblings in document order, except inside container types named in
// opts.IgnoreContainers. A promoted parent keeps only its own direct text
// (the text preceding its first nested tag); interleaved text runs between
// nested tags are not promoted. Tags named in opts.TrimEmpty whose content
// ends up empty are dropped.
//
// Postcondition: no node in the result has SubTags unless its type is an
// ignored container.
func Unfold(nodes []*Node, opts Options) []*Node {
	containers := toSet(opts.IgnoreContainers)
	trimEmpty := toSet(opts.TrimEmpty)

	var out []*Node
	for _, n := range nodes {
		out = append(out, unfoldNode(n, containers)...)
	}

	if trimEmpty == nil {
		return out
	}
	kept := out[:0]
	for _, n := range out {
		if trimEmpty[n.Type] && n.Content == "" && n.SubTags == nil {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func unfoldNode(n *Node, containers map[string]bool) []*Node {
	if n.SubTags == nil || containers[n.Type] {
		return []*Node{n}
	}

	// The node keeps its direct text: the leading comment runs before the
	// first nested tag.
	var direct []string
	children := n.SubTags
	for len(children) > 0 && children[0].IsComment() {
		direct = append(direct, children[0].Content)
		children = children[1:]
	}

	flat := &Node{
		Type:    n.Type,
		Attrs:   n.Attrs,
		Content: joinText(direct),
	}
	out := []*Node{flat}
	for _, c := range children {
		if c.IsComment() {
			continue
		}
		out = append(out, unfoldNode(c, containers)...)
	}
	return out
}

func joinText(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		joined := parts[0]
		for _, p := range parts[1:] {
			joined += "\n" + p
		}
		return joined
	}
}

// UnfoldResponse parses and unfolds one full model response. When the
// result collapses to a single node of the given planning container type,
// the model wrapped its whole structured reply inside that container
// instead of treating it as a preamble; the container's content is then
// re-parsed as a fresh top-level document and unfolded again.
func (p *Parser) UnfoldResponse(text string, allow []string, planning string, opts Options) []*Node {
	nodes := Unfold(p.Parse(text, allow), opts)
	if planning != "" && len(nodes) == 1 && nodes[0].Type == planning {
		p.logger.Debug("entire response wrapped in planning container; re-parsing",
			zap.String("tag", planning))
		nodes = Unfold(p.Parse(nodes[0].Content, allow), opts)
	}
	return nodes
}
