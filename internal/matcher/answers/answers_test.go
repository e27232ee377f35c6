package answers

import (
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestParseTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank lines dropped", "A\n\n  B  \n", []string{"A", "B"}},
		{"single", "  Generalization ", []string{"Generalization"}},
		{"crlf trimmed", "Concepts\r\nRelationships\r\n", []string{"Concepts", "Relationships"}},
		{"whitespace only", " \n\t\n", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTokens(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTokens(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for _, tok := range got {
				if tok == "" || tok != strings.TrimSpace(tok) || strings.Contains(tok, "\n") {
					t.Errorf("invalid token %q", tok)
				}
			}
		})
	}
}

func TestMatchChoice(t *testing.T) {
	tokens := []string{"Generalization", "Aggregation between wholes and parts"}
	tests := []struct {
		name      string
		choice    string
		wantToken string
		wantOK    bool
	}{
		{"choice contains token", "a. Generalization (is-a)", "Generalization", true},
		{"token contains choice", "Aggregation between wholes", "Aggregation between wholes and parts", true},
		{"no match", "Association", "", false},
		{"empty choice", "   ", "", false},
		{"case sensitive", "generalization", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, ok := MatchChoice(tt.choice, tokens)
			if ok != tt.wantOK || tok != tt.wantToken {
				t.Errorf("MatchChoice(%q) = %q, %v; want %q, %v", tt.choice, tok, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

func TestMatchChoiceFirstTokenWins(t *testing.T) {
	tok, ok := MatchChoice("Concepts and Relationships", []string{"Relationships", "Concepts"})
	if !ok || tok != "Relationships" {
		t.Errorf("MatchChoice() = %q, %v", tok, ok)
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("héllo", 2); got != "hé" {
		t.Errorf("Prefix() = %q", got)
	}
	if got := Prefix("short", 50); got != "short" {
		t.Errorf("Prefix() = %q", got)
	}
	if got := Prefix("abc", 0); got != "" {
		t.Errorf("Prefix() = %q", got)
	}
}

// fakePage is a flat page: element ids index into texts, blocks map to their
// wrapper, and wrappers list their choices.
type fakePage struct {
	texts     map[int]string
	blocks    []int
	wrapper   map[int]int
	choices   map[int][]int
	selection int
	marked    []int
}

func (p *fakePage) ContentBlocks() []int { return p.blocks }

func (p *fakePage) Enclosing(block int) (int, bool) {
	w, ok := p.wrapper[block]
	return w, ok
}

func (p *fakePage) SelectionAncestor() (int, bool) {
	return p.selection, p.selection != 0
}

func (p *fakePage) AnswerChoices(container int) []int { return p.choices[container] }

func (p *fakePage) Text(n int) string { return p.texts[n] }

func (p *fakePage) Mark(n int) { p.marked = append(p.marked, n) }

func (p *fakePage) Unmark(container int) {
	inside := p.choices[container]
	p.marked = slices.DeleteFunc(p.marked, func(n int) bool {
		return n == container || slices.Contains(inside, n)
	})
}

func newFakePage() *fakePage {
	return &fakePage{
		texts: map[int]string{
			10: "Question 1: Which types of relationships are used in Conceptual Modelling? Select all.",
			20: "Question 2: What is a conceptual model?",
			11: " Generalization ",
			12: "Association",
			13: "Aggregation",
			21: "A mapping of implicit domain interpretations",
			22: "A database table",
		},
		blocks:  []int{10, 20},
		wrapper: map[int]int{10: 1, 20: 2},
		choices: map[int][]int{1: {11, 12, 13}, 2: {21, 22}},
	}
}

func TestFindContainerByQuestionText(t *testing.T) {
	p := newFakePage()
	got, ok := FindContainer[int](p, "", "What is a conceptual model")
	if !ok || got != 2 {
		t.Errorf("FindContainer() = %d, %v; want 2", got, ok)
	}
}

func TestFindContainerSelectionTextFirst(t *testing.T) {
	p := newFakePage()
	got, ok := FindContainer[int](p, "Which types of relationships", "What is a conceptual model")
	if !ok || got != 1 {
		t.Errorf("FindContainer() = %d, %v; want 1", got, ok)
	}
}

func TestFindContainerUsesPrefixOnly(t *testing.T) {
	p := newFakePage()
	long := "Which types of relationships are used in Conceptual Modelling? This tail is not on the page"
	got, ok := FindContainer[int](p, long)
	if !ok || got != 1 {
		t.Errorf("FindContainer() = %d, %v; want 1", got, ok)
	}
}

func TestFindContainerFallsBackToSelection(t *testing.T) {
	p := newFakePage()
	p.selection = 7
	got, ok := FindContainer[int](p, "not on this page at all")
	if !ok || got != 7 {
		t.Errorf("FindContainer() = %d, %v; want selection ancestor 7", got, ok)
	}

	p.selection = 0
	if _, ok := FindContainer[int](p, "not on this page at all"); ok {
		t.Error("expected no container")
	}
}

func TestLocateMarksMatches(t *testing.T) {
	p := newFakePage()
	decisions := Locate[int](p, 1, []string{"Generalization", "Aggregation"})
	if len(decisions) != 3 {
		t.Fatalf("decisions = %d, want 3", len(decisions))
	}
	if !reflect.DeepEqual(p.marked, []int{11, 13}) {
		t.Errorf("marked = %v, want [11 13]", p.marked)
	}
	if decisions[0].Text != "Generalization" || decisions[0].Token != "Generalization" {
		t.Errorf("decision[0] = %+v", decisions[0])
	}
	if decisions[1].Matched {
		t.Errorf("Association should not match")
	}
	if Matched(decisions) != 2 {
		t.Errorf("Matched() = %d", Matched(decisions))
	}
}

func TestLocateDropsEarlierMarks(t *testing.T) {
	p := newFakePage()
	p.marked = []int{12, 22}
	Locate[int](p, 1, []string{"Aggregation"})
	if !reflect.DeepEqual(p.marked, []int{22, 13}) {
		t.Errorf("marked = %v, want [22 13]", p.marked)
	}
}

func TestLocateNoTokens(t *testing.T) {
	p := newFakePage()
	decisions := Locate[int](p, 2, nil)
	if Matched(decisions) != 0 || len(p.marked) != 0 {
		t.Errorf("nothing should be marked, got %v", p.marked)
	}
}
