package answers

import "strings"

// Page is the view of a rendered quiz page the locator needs. N is the
// page's element handle.
type Page[N any] interface {
	// ContentBlocks returns the question content blocks in document order.
	ContentBlocks() []N
	// Enclosing returns the question wrapper around a content block.
	Enclosing(block N) (N, bool)
	// SelectionAncestor returns the element holding the current selection.
	SelectionAncestor() (N, bool)
	// AnswerChoices returns the answer choice elements inside container.
	AnswerChoices(container N) []N
	// Text returns the visible text of n.
	Text(n N) string
	// Mark flags n as a correct answer candidate.
	Mark(n N)
	// Unmark drops the flags inside container left by earlier Marks.
	Unmark(container N)
}

// Decision records whether one answer choice matched an answer token.
type Decision[N any] struct {
	Element N      `json:"-"`
	Text    string `json:"text"`
	Matched bool   `json:"matched"`
	Token   string `json:"token,omitempty"`
}

// Locator finds question containers and marks matching answer choices.
type Locator[N any] struct {
	PrefixRunes int
}

// FindContainer uses DefaultPrefixRunes. See Locator.FindContainer.
func FindContainer[N any](p Page[N], texts ...string) (N, bool) {
	return Locator[N]{PrefixRunes: DefaultPrefixRunes}.FindContainer(p, texts...)
}

// Locate marks the choices of container that match tokens.
func Locate[N any](p Page[N], container N, tokens []string) []Decision[N] {
	return Locator[N]{}.Locate(p, container, tokens)
}

// FindContainer looks for the first content block containing the leading
// runes of one of texts, tried in order, and returns its question wrapper.
// When no block matches it falls back to the selection's ancestor. It
// reports false when neither yields an element.
func (l Locator[N]) FindContainer(p Page[N], texts ...string) (N, bool) {
	n := l.PrefixRunes
	if n <= 0 {
		n = DefaultPrefixRunes
	}
	blocks := p.ContentBlocks()
	for _, text := range texts {
		prefix := strings.TrimSpace(Prefix(strings.TrimSpace(text), n))
		if prefix == "" {
			continue
		}
		for _, block := range blocks {
			if !strings.Contains(p.Text(block), prefix) {
				continue
			}
			if container, ok := p.Enclosing(block); ok {
				return container, true
			}
		}
	}
	return p.SelectionAncestor()
}

// Locate decides every answer choice inside container against tokens, in
// document order, and marks the matches. Marks left in container by an
// earlier pass are dropped first.
func (l Locator[N]) Locate(p Page[N], container N, tokens []string) []Decision[N] {
	p.Unmark(container)
	choices := p.AnswerChoices(container)
	decisions := make([]Decision[N], 0, len(choices))
	for _, choice := range choices {
		text := strings.TrimSpace(p.Text(choice))
		d := Decision[N]{Element: choice, Text: text}
		if tok, ok := MatchChoice(text, tokens); ok {
			d.Matched = true
			d.Token = tok
			p.Mark(choice)
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// Matched counts the matched decisions.
func Matched[N any](decisions []Decision[N]) int {
	n := 0
	for _, d := range decisions {
		if d.Matched {
			n++
		}
	}
	return n
}
