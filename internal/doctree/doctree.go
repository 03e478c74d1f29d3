// Package doctree holds the structural representation of an uploaded
// document and the chunks cut from it for retrieval.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // From document metadata or the file name
	Source   string     // Original file name
	Children []*DocNode // Top-level sections or pages
}

// DocNode is a section, a page, or a run of body text.
type DocNode struct {
	Title    string
	Text     string
	Page     int // 1-based source page, 0 when the format has no pages
	Children []*DocNode
}

// Chunk is a sized piece of text ready to be embedded.
type Chunk struct {
	Text       string   `json:"text"`
	Index      int      `json:"index"`
	Breadcrumb []string `json:"breadcrumb,omitempty"`
	Page       int      `json:"page,omitempty"`
	Source     string   `json:"source"`
}

// Walk visits every node depth-first with the titles of its ancestors.
func (t *DocTree) Walk(fn func(n *DocNode, breadcrumb []string)) {
	var visit func(nodes []*DocNode, crumbs []string)
	visit = func(nodes []*DocNode, crumbs []string) {
		for _, n := range nodes {
			fn(n, crumbs)
			next := crumbs
			if n.Title != "" {
				next = append(crumbs[:len(crumbs):len(crumbs)], n.Title)
			}
			visit(n.Children, next)
		}
	}
	visit(t.Children, nil)
}

// Builder assembles a DocTree from a flat stream of headings and text
// blocks, nesting each heading under the nearest heading of lower level.
type Builder struct {
	title   string
	root    *DocNode
	stack   []entry
	pending strings.Builder
}

type entry struct {
	node  *DocNode
	level int
}

func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{
		title: title,
		root:  root,
		stack: []entry{{node: root, level: 0}},
	}
}

// Heading opens a section at level (1 = top).
func (b *Builder) Heading(level int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	b.flush()
	node := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, entry{node: node, level: level})
}

// Text appends a paragraph to the current section.
func (b *Builder) Text(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.pending.Len() > 0 {
		b.pending.WriteString("\n\n")
	}
	b.pending.WriteString(s)
}

func (b *Builder) flush() {
	t := b.pending.String()
	b.pending.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// Tree finishes the document. Text that appeared before any heading becomes
// a leading untitled node.
func (b *Builder) Tree(source string) *DocTree {
	b.flush()
	tree := &DocTree{Title: b.title, Source: source}
	if b.root.Text != "" {
		tree.Children = append(tree.Children, &DocNode{Text: b.root.Text})
	}
	tree.Children = append(tree.Children, b.root.Children...)
	return tree
}
