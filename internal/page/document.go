// Package page parses a rendered quiz page with golang.org/x/net/html and
// exposes it to the answer locator. Element lookups are by class name; the
// class lists come from configuration and default to Moodle's markup.
package page

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/answers"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selectors names the classes that identify the parts of a quiz page.
type Selectors struct {
	ContentBlocks   []string
	QuestionWrapper string
	Choices         []string
	HighlightClass  string
}

// DefaultSelectors matches Moodle quiz markup.
func DefaultSelectors() Selectors {
	return SelectorsFromConfig(config.Default().Page)
}

// SelectorsFromConfig builds Selectors from the page config section.
func SelectorsFromConfig(cfg config.PageConfig) Selectors {
	return Selectors{
		ContentBlocks:   cfg.ContentBlocks,
		QuestionWrapper: cfg.QuestionWrapper,
		Choices:         cfg.Choices,
		HighlightClass:  cfg.HighlightClass,
	}
}

// Document is a parsed page plus the text the user had selected on it.
type Document struct {
	root      *html.Node
	selection string
	sel       Selectors
}

var _ answers.Page[*html.Node] = (*Document)(nil)

// Parse reads an HTML document. selection is the user's selected text, used
// to find the selection's ancestor element.
func Parse(r io.Reader, selection string, sel Selectors) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}
	return &Document{root: root, selection: strings.TrimSpace(selection), sel: sel}, nil
}

// ContentBlocks returns every element carrying a content-block class, in
// document order.
func (d *Document) ContentBlocks() []*html.Node {
	return findAll(d.root, func(n *html.Node) bool {
		return hasAnyClass(n, d.sel.ContentBlocks)
	})
}

// Enclosing walks up from block to the question wrapper, then to the closest
// content block, then settles for the parent.
func (d *Document) Enclosing(block *html.Node) (*html.Node, bool) {
	if block == nil {
		return nil, false
	}
	if w := closest(block, func(n *html.Node) bool { return hasClass(n, d.sel.QuestionWrapper) }); w != nil {
		return w, true
	}
	if c := closest(block, func(n *html.Node) bool { return hasClass(n, "content") }); c != nil {
		return c, true
	}
	if p := block.Parent; p != nil && p.Type == html.ElementNode {
		return p, true
	}
	return nil, false
}

// SelectionAncestor returns the deepest element whose text contains the
// whole selection.
func (d *Document) SelectionAncestor() (*html.Node, bool) {
	if d.selection == "" {
		return nil, false
	}
	var deepest *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && !strings.Contains(textContent(n), d.selection) {
			return
		}
		if n.Type == html.ElementNode {
			deepest = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				walk(c)
			}
		}
	}
	walk(d.root)
	if deepest == nil {
		return nil, false
	}
	if deepest.DataAtom == atom.Html || deepest.DataAtom == atom.Body {
		return nil, false
	}
	return deepest, true
}

// AnswerChoices returns the choice elements inside container.
func (d *Document) AnswerChoices(container *html.Node) []*html.Node {
	if container == nil {
		return nil
	}
	return findAll(container, func(n *html.Node) bool {
		return n != container && hasAnyClass(n, d.sel.Choices)
	})
}

// Text returns the trimmed text content of n.
func (d *Document) Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(textContent(n))
}

// Mark adds the highlight class to n and checks the checkbox or radio input
// n owns. A wrapper around several choices is highlighted but none of its
// inputs is checked.
func (d *Document) Mark(n *html.Node) {
	addClass(n, d.sel.HighlightClass)
	if input := d.ownedInput(n); input != nil {
		setAttr(input, "checked", "checked")
	}
}

// Unmark removes the highlights inside container, container included, and
// unchecks the inputs those highlighted elements own.
func (d *Document) Unmark(container *html.Node) {
	if container == nil {
		return
	}
	d.unmarkWithin(container)
}

// ClearMarks removes every highlight and unchecks the inputs owned by
// highlighted elements. It returns the number of elements cleared.
func (d *Document) ClearMarks() int {
	return d.unmarkWithin(d.root)
}

func (d *Document) unmarkWithin(from *html.Node) int {
	marked := findAll(from, func(n *html.Node) bool { return hasClass(n, d.sel.HighlightClass) })
	for _, n := range marked {
		removeClass(n, d.sel.HighlightClass)
		if input := d.ownedInput(n); input != nil {
			removeAttr(input, "checked")
		}
	}
	return len(marked)
}

// ownedInput returns the single checkbox or radio inside n, or nil when n
// wraps other answer choices or more than one input.
func (d *Document) ownedInput(n *html.Node) *html.Node {
	nested := findFirst(n, func(c *html.Node) bool {
		return c != n && hasAnyClass(c, d.sel.Choices)
	})
	if nested != nil {
		return nil
	}
	inputs := findAll(n, isToggle)
	if len(inputs) != 1 {
		return nil
	}
	return inputs[0]
}

// HasClass reports whether any element carries one of classes.
func (d *Document) HasClass(classes ...string) bool {
	found := findFirst(d.root, func(n *html.Node) bool {
		return hasAnyClass(n, classes)
	})
	return found != nil
}

// Render writes the document back out as HTML.
func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("rendering page html: %w", err)
	}
	return nil
}

// String renders the document, returning "" on failure.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

func findAll(from *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(from)
	return out
}

func findFirst(from *html.Node, match func(*html.Node) bool) *html.Node {
	if from.Type == html.ElementNode && match(from) {
		return from
	}
	for c := from.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func isToggle(n *html.Node) bool {
	if n.DataAtom != atom.Input {
		return false
	}
	typ := strings.ToLower(attr(n, "type"))
	return typ == "checkbox" || typ == "radio"
}

func classes(n *html.Node) []string {
	return strings.Fields(attr(n, "class"))
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return false
	}
	return slices.Contains(classes(n), class)
}

func hasAnyClass(n *html.Node, want []string) bool {
	have := classes(n)
	for _, c := range want {
		if slices.Contains(have, c) {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	if class == "" || hasClass(n, class) {
		return
	}
	setAttr(n, "class", strings.TrimSpace(attr(n, "class")+" "+class))
}

func removeClass(n *html.Node, class string) {
	kept := slices.DeleteFunc(classes(n), func(c string) bool { return c == class })
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}
