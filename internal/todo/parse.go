package todo

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// Parse walks the markdown AST. A level 2 or 3 heading that starts with
// "Phase <n>" opens a phase; every task-list item below it becomes a
// record. Items before the first phase heading and items of nested lists
// are ignored.
func Parse(content string) []Record {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		out      []Record
		phase    string
		phaseNum int
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level != 2 && node.Level != 3 {
				return ast.WalkSkipChildren, nil
			}
			title := plainText(node, src)
			if num := phaseNumber(title); num > 0 {
				phase, phaseNum = title, num
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if phase == "" || nested(node) {
				return ast.WalkContinue, nil
			}
			if raw, ok := taskText(node, src); ok && raw != "" {
				out = append(out, newRecord(len(out)+1, phase, phaseNum, raw))
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

func nested(item *ast.ListItem) bool {
	list := item.Parent()
	if list == nil {
		return false
	}
	_, ok := list.Parent().(*ast.ListItem)
	return ok
}

var checkboxPrefix = regexp.MustCompile(`^\[[ xX]\]\s*`)

// taskText returns the source text of the item's first block, markup
// intact, when it opens with a checkbox.
func taskText(item *ast.ListItem, src []byte) (string, bool) {
	block := item.FirstChild()
	if block == nil {
		return "", false
	}
	if _, ok := block.FirstChild().(*east.TaskCheckBox); !ok {
		return "", false
	}
	lines := block.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
			parts = append(parts, line)
		}
	}
	raw := strings.Join(parts, " ")
	return strings.TrimSpace(checkboxPrefix.ReplaceAllString(raw, "")), true
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
