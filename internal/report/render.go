package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// RenderOptions controls Render.
type RenderOptions struct {
	// FailuresOnly hides passed steps.
	FailuresOnly bool
}

// Render writes nodes as an indented tree followed by a summary line.
func Render(w io.Writer, nodes []*Node, opts RenderOptions) error {
	shown := nodes
	if opts.FailuresOnly {
		shown = Failures(nodes)
	}

	var b strings.Builder
	for _, n := range shown {
		renderNode(&b, n, 0)
	}

	s := summarize(nodes)
	line := fmt.Sprintf("%d passed, %d failed", s.Passed, s.Failed)
	if s.Failed > 0 {
		line = failStyle.Render("FAILED") + " " + line
	} else {
		line = passStyle.Render("ok") + " " + line
	}
	b.WriteString("\n" + line + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes the tree's current results.
func (t *Tree) Render(w io.Writer, opts RenderOptions) error {
	return Render(w, t.Nodes(), opts)
}

// Failures returns copies of the failed nodes with their passing
// descendants removed.
func Failures(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Status != StatusFailed {
			continue
		}
		c := *n
		c.Children = Failures(n.Children)
		out = append(out, &c)
	}
	return out
}

func renderNode(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	mark := passStyle.Render("ok")
	if n.Status == StatusFailed {
		mark = failStyle.Render("FAIL")
	}
	fmt.Fprintf(b, "%s%s %s %s\n", indent, mark, firstLine(n.Name), dimStyle.Render("("+n.Duration.Round(time.Millisecond).String()+")"))

	if n.Leaf() && n.Error != "" {
		for _, line := range strings.Split(n.Error, "\n") {
			b.WriteString(indent + "    " + errorStyle.Render(line) + "\n")
		}
	}
	for _, c := range n.Children {
		renderNode(b, c, depth+1)
	}
}

func summarize(nodes []*Node) Summary {
	t := &Tree{root: Node{Children: nodes}}
	return t.Summary()
}

// firstLine shortens multi-line step names, such as raw examples.
func firstLine(name string) string {
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		return name[:i] + " ..."
	}
	return name
}
