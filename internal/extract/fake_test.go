package extract

import (
	"fmt"
	"strings"

	"github.com/hyperjump/rmeta/internal/models"
)

// node is one unit of a scripted document. The scripted decoder looks nodes
// up by the id stored in the unit bytes.
type node struct {
	name     string
	meta     [][2]string
	blocks   []string
	children []*node
	fail     error
	panicMsg string
}

type scripted struct {
	nodes map[string]*node
	calls int
}

// newScripted assigns ids to the tree and returns the root bytes and decoder.
func newScripted(root *node) ([]byte, *scripted) {
	s := &scripted{nodes: make(map[string]*node)}
	var assign func(n *node) string
	counter := 0
	assign = func(n *node) string {
		id := fmt.Sprintf("node-%d", counter)
		counter++
		s.nodes[id] = n
		for _, c := range n.children {
			assign(c)
		}
		return id
	}
	return []byte(assign(root)), s
}

func (s *scripted) idOf(target *node) string {
	for id, n := range s.nodes {
		if n == target {
			return id
		}
	}
	return ""
}

func (s *scripted) Decode(in *Input, sink *Sink, md *models.Metadata) ([]Embedded, error) {
	s.calls++
	n, ok := s.nodes[string(in.Data)]
	if !ok {
		return nil, Malformedf("unknown node %q", in.Data)
	}
	md.Set(models.ContentType, "application/x-scripted")
	for _, kv := range n.meta {
		md.Add(kv[0], kv[1])
	}
	for _, b := range n.blocks {
		sink.WriteText(b)
		sink.EndBlock()
	}
	if n.panicMsg != "" {
		panic(n.panicMsg)
	}
	var children []Embedded
	for _, c := range n.children {
		children = append(children, Embedded{Name: c.name, Data: []byte(s.idOf(c))})
	}
	if n.fail != nil {
		return children, n.fail
	}
	return children, nil
}

// recursiveDoc builds a 12-unit tree (root plus 11 embedded units) whose text
// output is exactly 8000 characters in text mode: every block is followed by
// one newline.
func recursiveDoc() *node {
	leaf := func(name string) *node {
		return &node{name: name, blocks: []string{strings.Repeat("e", 639)}}
	}
	nested := leaf("embed3.docx")
	nested.children = []*node{leaf("embed3_image1.png"), leaf("embed3_image2.png")}
	sheet := leaf("embed5.xlsx")
	sheet.children = []*node{leaf("chart1.emf"), leaf("chart2.emf"), leaf("chart3.emf")}
	const opening = "When in the Course of human events it becomes necessary "
	return &node{
		name:   "test_recursive_embedded.docx",
		meta:   [][2]string{{"extended-properties:Application", "Microsoft Office Word"}},
		blocks: []string{opening + strings.Repeat("r", 959-len(opening))},
		children: []*node{
			leaf("embed1.txt"),
			leaf("embed2.txt"),
			nested,
			leaf("embed4.txt"),
			sheet,
			leaf("embed6.txt"),
		},
	}
}
