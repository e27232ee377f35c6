// Command loadtest drives the matcher with a mix of ranked searches and
// highlight requests and reports throughput, latency and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
//	    [-rps 0] [-highlight-ratio 0.2] [-page internal/page/testdata/moodle_quiz.html] [-api-key qm_...]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Concurrency    int
	Duration       time.Duration
	RPS            float64
	HighlightRatio float64
	PageHTML       string
	Queries        []string
}

type endpointStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	endpoints     map[string]*endpointStats
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		endpoints: map[string]*endpointStats{
			"search":    {latencies: make([]time.Duration, 0, 100000)},
			"highlight": {latencies: make([]time.Duration, 0, 10000)},
		},
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(endpoint string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	ep := s.endpoints[endpoint]
	ep.requests.Add(1)

	if err != nil || statusCode < 200 || statusCode >= 300 {
		s.errorCount.Add(1)
		ep.errors.Add(1)
	} else {
		s.successCount.Add(1)
	}
	if err != nil {
		return
	}

	ep.mu.Lock()
	ep.latencies = append(ep.latencies, duration)
	ep.mu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the matcher service")
	apiKey := flag.String("api-key", "", "API key sent as X-API-Key when auth is enabled")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate cap; 0 means unlimited")
	highlightRatio := flag.Float64("highlight-ratio", 0.2, "share of requests sent to /api/v1/highlight")
	pagePath := flag.String("page", "internal/page/testdata/moodle_quiz.html", "quiz page posted to /api/v1/highlight")
	flag.Parse()

	var pageHTML string
	if *highlightRatio > 0 {
		data, err := os.ReadFile(*pagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading quiz page: %v\n", err)
			os.Exit(1)
		}
		pageHTML = string(data)
	}

	cfg := Config{
		BaseURL:        *baseURL,
		APIKey:         *apiKey,
		Concurrency:    *concurrency,
		Duration:       *duration,
		RPS:            *rps,
		HighlightRatio: *highlightRatio,
		PageHTML:       pageHTML,
		Queries: []string{
			"What is a conceptual model",
			"conceptual model",
			"Which of the following are part of a conceptual model",
			"entity relationship diagram",
			"attributes of an entity",
			"domain model",
			"Select the correct description of a conceptual model",
			"mapping of concepts",
			"unrelated question about networking",
			"explicit description",
		},
	}

	fmt.Println("=== Quiz Answer Matcher Load Test ===")
	fmt.Printf("Target:          %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:     %d\n", cfg.Concurrency)
	fmt.Printf("Duration:        %s\n", cfg.Duration)
	fmt.Printf("Rate cap:        %s\n", rateLabel(cfg.RPS))
	fmt.Printf("Highlight share: %.0f%%\n", cfg.HighlightRatio*100)
	fmt.Printf("Queries:         %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func rateLabel(rps float64) string {
	if rps <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%.0f req/s", rps)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	// One highlight for every `every` requests per worker.
	every := 0
	if cfg.HighlightRatio > 0 && cfg.PageHTML != "" {
		every = max(1, int(math.Round(1/cfg.HighlightRatio)))
	}

	fmt.Print("Running")
	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for n := w; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				query := cfg.Queries[n%len(cfg.Queries)]

				var (
					endpoint string
					req      *http.Request
				)
				if every > 0 && n%every == 0 {
					endpoint = "highlight"
					req = highlightRequest(ctx, cfg, query)
				} else {
					endpoint = "search"
					policy := "popup"
					if n%2 == 1 {
						policy = "toolbar"
					}
					req = mustNewRequest(ctx, http.MethodGet,
						fmt.Sprintf("%s/api/v1/search?q=%s&policy=%s", cfg.BaseURL, url.QueryEscape(query), policy), nil)
				}
				if cfg.APIKey != "" {
					req.Header.Set("X-API-Key", cfg.APIKey)
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.RecordRequest(endpoint, elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(endpoint, elapsed, resp.StatusCode, nil)
			}
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func highlightRequest(ctx context.Context, cfg Config, selection string) *http.Request {
	body, _ := json.Marshal(map[string]string{
		"url":       "https://moodle.example/mod/quiz/attempt.php",
		"html":      cfg.PageHTML,
		"selection": selection,
	})
	req := mustNewRequest(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/highlight", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func mustNewRequest(ctx context.Context, method, rawURL string, body io.Reader) *http.Request {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	for _, name := range []string{"search", "highlight"} {
		ep := stats.endpoints[name]
		ep.mu.Lock()
		latencies := make([]time.Duration, len(ep.latencies))
		copy(latencies, ep.latencies)
		ep.mu.Unlock()
		if len(latencies) == 0 {
			continue
		}
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Printf("=== Latency: %s (%d requests, %d errors) ===\n", name, ep.requests.Load(), ep.errors.Load())
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the matcher running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
