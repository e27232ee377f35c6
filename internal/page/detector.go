package page

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
)

// Detector decides whether a page is a quiz page worth scanning.
type Detector interface {
	IsQuizPage(url string, doc *Document) bool
}

// KeywordDetector accepts a page whose URL contains one of URLKeywords or
// whose markup carries one of Markers.
type KeywordDetector struct {
	URLKeywords []string
	Markers     []string
}

// NewDetector builds the default detector from the page config.
func NewDetector(cfg config.PageConfig) *KeywordDetector {
	return &KeywordDetector{URLKeywords: cfg.URLKeywords, Markers: cfg.Markers}
}

func (k *KeywordDetector) IsQuizPage(url string, doc *Document) bool {
	lower := strings.ToLower(url)
	for _, kw := range k.URLKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return doc != nil && doc.HasClass(k.Markers...)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(url string, doc *Document) bool

func (f DetectorFunc) IsQuizPage(url string, doc *Document) bool { return f(url, doc) }
