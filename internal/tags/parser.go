// Package tags implements the tag-markup protocol spoken between the engine
// and the language model: a permissive parser that turns free-form model
// output containing pseudo-XML tags into a structured forest, an unfolder
// that normalizes that forest, and a serializer for round-tripping.
//
// The format is deliberately not XML. Model output is unreliable: tags are
// left open, closes are mismatched, attributes are malformed. The parser
// never fails on bad input — anything it cannot interpret degrades to
// visible text so that no information is lost.
package tags

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// CommentType is the sentinel node type for untagged text runs.
const CommentType = "comment"

// Node is one parsed tag or text run.
type Node struct {
	// Type is the tag name as written, or CommentType for plain text. Tag
	// names match case-sensitively: directive vocabularies are lowercase,
	// so a differently-cased tag (<Dialog>) is not recognized and degrades
	// to text like any other disallowed name.
	Type string
	// Attrs holds key="value" attributes. Keys are unique; order is not
	// significant.
	Attrs map[string]string
	// Content is the raw text between the open and close tags, trimmed of
	// leading and trailing whitespace. For a tag with nested markup it
	// contains the original substring including that markup.
	Content string
	// SubTags is the recursive parse of Content, in document order, when
	// Content contained at least one recognizable tag. Text runs between
	// nested tags appear as CommentType nodes. Nil otherwise.
	SubTags []*Node
}

// IsComment reports whether the node is an untagged text run.
func (n *Node) IsComment() bool {
	return n.Type == CommentType
}

// Attr returns the named attribute, or an empty string if absent.
func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// tagToken matches anything tag-shaped: <name ...>, </name>, <name .../>.
// Group 1 is the close slash, group 2 the name, group 3 the raw attribute
// span, group 4 the self-close slash.
var tagToken = regexp.MustCompile(`<(/?)([^\s>/]+)([^>]*?)(/?)>`)

// attrPair matches one key="value" attribute. Anything else in the
// attribute span is ignored without error.
var attrPair = regexp.MustCompile(`([A-Za-z0-9_:-]+)="([^"]*)"`)

// Parser parses tag markup out of raw model output.
type Parser struct {
	logger *zap.Logger
}

// NewParser constructs a Parser.
//
// Precondition: logger must not be nil (use zap.NewNop() for silence).
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		panic("tags.NewParser: logger must not be nil")
	}
	return &Parser{logger: logger}
}

// Parse converts raw text into an ordered forest of nodes.
//
// When allow is non-nil, only the named tags open at the top level; any
// other tag-shaped token is kept as literal text. Nested content is always
// re-parsed without restriction.
//
// Postcondition: never panics or fails on malformed input; every byte of
// input is either structured into a node or preserved as text.
func (p *Parser) Parse(text string, allow []string) []*Node {
	text = stripFence(text)

	var allowed map[string]bool
	if allow != nil {
		allowed = make(map[string]bool, len(allow))
		for _, name := range allow {
			allowed[name] = true
		}
	}

	nodes := p.scan(text, allowed)
	for _, n := range nodes {
		p.recurse(n)
	}
	return nodes
}

// scan performs the top-level left-to-right pass. It maintains a single
// "currently open tag" slot rather than a stack: while a tag is open, every
// tag-shaped token other than its matching close is accumulated into its
// content as literal text. Nesting is recovered later by recursion.
func (p *Parser) scan(text string, allowed map[string]bool) []*Node {
	var (
		nodes   []*Node
		open    *Node
		content strings.Builder
		comment strings.Builder
	)

	appendText := func(s string) {
		if open != nil {
			content.WriteString(s)
		} else {
			comment.WriteString(s)
		}
	}

	flushComment := func() {
		trimmed := strings.TrimSpace(comment.String())
		comment.Reset()
		if trimmed != "" {
			nodes = append(nodes, &Node{Type: CommentType, Attrs: map[string]string{}, Content: trimmed})
		}
	}

	closeOpen := func() {
		open.Content = strings.TrimSpace(content.String())
		content.Reset()
		nodes = append(nodes, open)
		open = nil
	}

	pos := 0
	for pos < len(text) {
		loc := tagToken.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			appendText(text[pos:])
			break
		}

		appendText(text[pos : pos+loc[0]])
		matched := text[pos+loc[0] : pos+loc[1]]
		closing := loc[3] > loc[2]
		name := text[pos+loc[4] : pos+loc[5]]
		attrSpan := text[pos+loc[6] : pos+loc[7]]
		selfClosing := loc[9] > loc[8]
		pos += loc[1]

		switch {
		case open != nil:
			if closing && name == open.Type {
				closeOpen()
				continue
			}
			// Any other tag token inside an open tag stays literal; the
			// recursive pass will make sense of it.
			content.WriteString(matched)

		case closing:
			p.logger.Warn("unexpected close tag kept as text", zap.String("tag", name))
			comment.WriteString(matched)

		case allowed != nil && !allowed[name]:
			p.logger.Warn("disallowed tag kept as text", zap.String("tag", name))
			comment.WriteString(matched)

		default:
			flushComment()
			node := &Node{Type: name, Attrs: parseAttrs(attrSpan)}
			if selfClosing {
				nodes = append(nodes, node)
				continue
			}
			open = node
		}
	}

	if open != nil {
		// Unclosed tag at end of input: auto-close with what accumulated.
		p.logger.Warn("tag left open at end of input", zap.String("tag", open.Type))
		closeOpen()
	}
	flushComment()

	return nodes
}

// recurse re-parses a node's content to populate SubTags. A node whose
// content holds no recognizable tag keeps SubTags nil.
func (p *Parser) recurse(n *Node) {
	if n.IsComment() || n.Content == "" {
		return
	}
	if !strings.Contains(n.Content, "<") {
		return
	}

	children := p.scan(n.Content, nil)
	hasTag := false
	for _, c := range children {
		if !c.IsComment() {
			hasTag = true
			break
		}
	}
	if !hasTag {
		return
	}

	for _, c := range children {
		p.recurse(c)
	}
	n.SubTags = children
}

// parseAttrs extracts key="value" pairs from a raw attribute span.
// Malformed attribute text is silently ignored.
func parseAttrs(span string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPair.FindAllStringSubmatch(span, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// stripFence removes one leading/trailing run of backtick fences and
// surrounding whitespace. Models often wrap structured output in a code
// fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		rest := strings.TrimLeft(text, "`")
		// A fence opener may carry a language hint on the same line.
		if idx := strings.IndexByte(rest, '\n'); idx >= 0 && len(rest[:idx]) <= 16 && !strings.ContainsAny(rest[:idx], "<> ") {
			rest = rest[idx+1:]
		}
		text = rest
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimRight(text, "`")
	}
	return strings.TrimSpace(text)
}
