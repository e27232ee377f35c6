// Package ranker scores corpus questions against a query and returns the
// best candidates. Scoring is lexical: see Score.
package ranker

import (
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/tokenizer"
)

// ScoredRecord is a corpus record with the score it earned for one query.
type ScoredRecord struct {
	corpus.QARecord
	Score float64 `json:"score"`
}

// Policy is a named ranking policy: how many results and the score a result
// must exceed.
type Policy struct {
	Name     string  `json:"name"`
	Limit    int     `json:"limit"`
	MinScore float64 `json:"min_score"`
}

// RankTop scores every record's question against query and returns at most k
// records scoring strictly above minScore, best first. Equal scores keep
// corpus order.
func RankTop(query string, records []corpus.QARecord, k int, minScore float64) []ScoredRecord {
	if k <= 0 || len(records) == 0 {
		return []ScoredRecord{}
	}
	queryTokens := tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return []ScoredRecord{}
	}

	top := newTopK(min(k, len(records)))
	for i, rec := range records {
		score := scoreQuestion(queryTokens, rec.Question)
		if score <= minScore {
			continue
		}
		top.offer(candidate{
			ScoredRecord: ScoredRecord{QARecord: rec, Score: score},
			pos:          i,
		})
	}
	return top.sorted()
}

// Rank applies p to records.
func (p Policy) Rank(query string, records []corpus.QARecord) []ScoredRecord {
	return RankTop(query, records, p.Limit, p.MinScore)
}

// BestMatch returns the highest scoring record without any threshold; the
// earliest record wins ties. It reports false for an empty corpus or a query
// with no words.
func BestMatch(query string, records []corpus.QARecord) (ScoredRecord, bool) {
	if len(records) == 0 || strings.TrimSpace(query) == "" {
		return ScoredRecord{}, false
	}
	queryTokens := tokenizer.Tokenize(query)

	best := ScoredRecord{QARecord: records[0], Score: math.Inf(-1)}
	for _, rec := range records {
		score := scoreQuestion(queryTokens, rec.Question)
		if score > best.Score {
			best = ScoredRecord{QARecord: rec, Score: score}
		}
	}
	return best, true
}

// Accept reports whether a best match is strong enough to act on.
func Accept(match ScoredRecord, threshold float64) bool {
	return match.Score >= threshold
}

func scoreQuestion(queryTokens []string, question string) float64 {
	questionTokens := tokenizer.Tokenize(question)
	return scoreTokens(queryTokens, questionTokens, setOf(questionTokens))
}
