package highlight

import (
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/answers"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
)

// leadWords is how many leading words of an answer line are emphasised.
const leadWords = 2

// PopupEntry is one match as the in-page popup shows it.
type PopupEntry struct {
	Question   string       `json:"question"`
	Lines      []AnswerLine `json:"lines"`
	Score      float64      `json:"score"`
	Similarity int          `json:"similarity"`
}

// AnswerLine splits an answer line into its emphasised lead and the rest.
type AnswerLine struct {
	Lead string `json:"lead"`
	Rest string `json:"rest,omitempty"`
}

// PopupEntries formats ranked matches for the in-page popup. Similarity is
// the score as a rounded percentage.
func PopupEntries(matches []ranker.ScoredRecord) []PopupEntry {
	entries := make([]PopupEntry, 0, len(matches))
	for _, m := range matches {
		entry := PopupEntry{
			Question:   m.Question,
			Score:      m.Score,
			Similarity: int(math.Round(m.Score * 100)),
		}
		for _, line := range answers.ParseTokens(m.Answer) {
			entry.Lines = append(entry.Lines, splitLead(line))
		}
		entries = append(entries, entry)
	}
	return entries
}

func splitLead(line string) AnswerLine {
	words := strings.Split(line, " ")
	if len(words) <= leadWords {
		return AnswerLine{Lead: line}
	}
	return AnswerLine{
		Lead: strings.Join(words[:leadWords], " "),
		Rest: strings.Join(words[leadWords:], " "),
	}
}
