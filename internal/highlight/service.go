// Package highlight runs the auto-highlight flow: it matches the user's
// selection against the corpus, finds the question on the submitted page and
// marks the answer choices that correspond to the best match's answers.
package highlight

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/answers"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/page"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/tracing"
	"golang.org/x/net/html"
)

// Status says how far a highlight request got.
type Status string

const (
	StatusDisabled    Status = "disabled"
	StatusNotQuizPage Status = "not_quiz_page"
	StatusEmptyCorpus Status = "empty_corpus"
	StatusNoMatch     Status = "no_match"
	StatusNoAnswers   Status = "no_answers"
	StatusNoContainer Status = "no_container"
	StatusHighlighted Status = "highlighted"
	StatusCleared     Status = "cleared"
)

type Request struct {
	URL       string `json:"url"`
	HTML      string `json:"html"`
	Selection string `json:"selection"`
}

type Result struct {
	Status         Status                         `json:"status"`
	Match          *ranker.ScoredRecord           `json:"match,omitempty"`
	Tokens         []string                       `json:"tokens,omitempty"`
	Choices        []answers.Decision[*html.Node] `json:"choices,omitempty"`
	Marked         int                            `json:"marked"`
	HTML           string                         `json:"html,omitempty"`
	ClearSelection bool                           `json:"clearSelection"`
	ShowPopup      bool                           `json:"showPopup"`
	Popup          []PopupEntry                   `json:"popup,omitempty"`
}

// ClearResult is the page with every highlight removed.
type ClearResult struct {
	Status  Status `json:"status"`
	Cleared int    `json:"cleared"`
	HTML    string `json:"html,omitempty"`
}

type CorpusSource interface {
	List(ctx context.Context) ([]corpus.QARecord, error)
}

type SettingsSource interface {
	Get(ctx context.Context) settings.Settings
}

type Service struct {
	corpus       CorpusSource
	settings     SettingsSource
	detector     page.Detector
	selectors    page.Selectors
	locator      answers.Locator[*html.Node]
	popup        ranker.Policy
	acceptScore  float64
	maxHTMLBytes int64
	tracer       *tracing.Tracer
	metrics      *metrics.Metrics
	collector    *analytics.Collector
	logger       *slog.Logger
}

// New creates a Service. tracer, m and collector may be nil.
func New(
	source CorpusSource,
	settingsSource SettingsSource,
	detector page.Detector,
	matcherCfg config.MatcherConfig,
	pageCfg config.PageConfig,
	tracer *tracing.Tracer,
	m *metrics.Metrics,
	collector *analytics.Collector,
) *Service {
	if detector == nil {
		detector = page.NewDetector(pageCfg)
	}
	return &Service{
		corpus:       source,
		settings:     settingsSource,
		detector:     detector,
		selectors:    page.SelectorsFromConfig(pageCfg),
		locator:      answers.Locator[*html.Node]{PrefixRunes: matcherCfg.ContainerPrefix},
		popup:        ranker.Policy{Name: "popup", Limit: matcherCfg.PopupLimit, MinScore: matcherCfg.MinScore},
		acceptScore:  matcherCfg.AcceptScore,
		maxHTMLBytes: pageCfg.MaxHTMLBytes,
		tracer:       tracer,
		metrics:      m,
		collector:    collector,
		logger:       slog.Default().With("component", "highlight"),
	}
}

// Highlight marks the answers to the selected question on req.HTML. Every
// reason to stop early is reported through Result.Status; errors are
// returned only for unusable requests.
func (s *Service) Highlight(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "highlight", middleware.GetRequestID(ctx))
	defer tracing.Finish(span, true)

	result, err := s.highlight(ctx, req)
	if err != nil {
		tracing.Attr(span, "error", err.Error())
		return nil, err
	}
	tracing.Attr(span, "status", string(result.Status))
	tracing.Attr(span, "marked", result.Marked)
	s.observe(ctx, req, result, time.Since(start))
	return result, nil
}

func (s *Service) highlight(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx)
	prefs := s.settings.Get(ctx)
	if !prefs.AutoHighlightEnabled {
		return &Result{Status: StatusDisabled}, nil
	}

	doc, err := s.parse(req.HTML, req.Selection)
	if err != nil {
		return nil, err
	}
	if !s.detector.IsQuizPage(req.URL, doc) {
		return &Result{Status: StatusNotQuizPage}, nil
	}
	result := &Result{
		ClearSelection: prefs.AutoClearSelection,
		ShowPopup:      prefs.HTMLPopupEnabled,
	}

	records, err := s.corpus.List(ctx)
	if err != nil {
		log.Error("loading corpus failed, treating as empty", "error", err)
		records = nil
	}
	if len(records) == 0 {
		result.Status = StatusEmptyCorpus
		return result, nil
	}
	if result.ShowPopup {
		result.Popup = PopupEntries(s.popup.Rank(req.Selection, records))
	}

	_, rankSpan := tracing.Child(ctx, "best-match")
	match, ok := ranker.BestMatch(req.Selection, records)
	tracing.Attr(rankSpan, "corpus", len(records))
	tracing.Attr(rankSpan, "score", match.Score)
	tracing.Finish(rankSpan, false)
	if !ok || !ranker.Accept(match, s.acceptScore) {
		if ok {
			result.Match = &match
		}
		result.Status = StatusNoMatch
		return result, nil
	}
	result.Match = &match

	result.Tokens = answers.ParseTokens(match.Answer)
	if len(result.Tokens) == 0 {
		result.Status = StatusNoAnswers
		return result, nil
	}

	_, locateSpan := tracing.Child(ctx, "locate")
	defer tracing.Finish(locateSpan, false)
	container, ok := s.locator.FindContainer(doc, req.Selection, match.Question)
	if !ok {
		result.Status = StatusNoContainer
		return result, nil
	}
	result.Choices = s.locator.Locate(doc, container, result.Tokens)
	result.Marked = answers.Matched(result.Choices)
	tracing.Attr(locateSpan, "choices", len(result.Choices))

	var b strings.Builder
	if err := doc.Render(&b); err != nil {
		return nil, err
	}
	result.HTML = b.String()
	result.Status = StatusHighlighted
	log.Debug("answers highlighted",
		"score", match.Score,
		"tokens", len(result.Tokens),
		"choices", len(result.Choices),
		"marked", result.Marked,
	)
	return result, nil
}

// Clear removes every highlight from html. It refuses when keyboard
// shortcuts are disabled.
func (s *Service) Clear(ctx context.Context, rawHTML string) (*ClearResult, error) {
	if !s.settings.Get(ctx).KeyboardShortcutsEnabled {
		return &ClearResult{Status: StatusDisabled}, nil
	}
	doc, err := s.parse(rawHTML, "")
	if err != nil {
		return nil, err
	}
	cleared := doc.ClearMarks()
	var b strings.Builder
	if err := doc.Render(&b); err != nil {
		return nil, err
	}
	return &ClearResult{Status: StatusCleared, Cleared: cleared, HTML: b.String()}, nil
}

func (s *Service) parse(rawHTML, selection string) (*page.Document, error) {
	if s.maxHTMLBytes > 0 && int64(len(rawHTML)) > s.maxHTMLBytes {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
			"page html exceeds %d bytes", s.maxHTMLBytes)
	}
	doc, err := page.Parse(strings.NewReader(rawHTML), selection, s.selectors)
	if err != nil {
		s.logger.Warn("unparseable page html", "error", err)
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "page html could not be parsed")
	}
	return doc, nil
}

func (s *Service) observe(ctx context.Context, req Request, result *Result, latency time.Duration) {
	if s.metrics != nil {
		s.metrics.HighlightOutcomes.WithLabelValues(string(result.Status)).Inc()
		if result.Status == StatusHighlighted {
			s.metrics.HighlightedChoices.Observe(float64(result.Marked))
		}
	}
	var score float64
	if result.Match != nil {
		score = result.Match.Score
	}
	s.collector.Track(analytics.HighlightEvent{
		Type:      analytics.EventHighlight,
		Status:    string(result.Status),
		Query:     req.Selection,
		Score:     score,
		Choices:   len(result.Choices),
		Marked:    result.Marked,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
}
