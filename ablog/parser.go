// Package ablog derives A/B test metrics from the landing-page
// application's structured log lines and archives completed test results.
// It counts events only; significance statistics live elsewhere.
package ablog

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"strings"
)

// Variants recognized in log lines. Anything else is ignored.
var variants = []string{"a", "b"}

var (
	variantRe = regexp.MustCompile(`variant="([^"]*)"`)
	ipRe      = regexp.MustCompile(`ip="([^"]*)"`)
)

// Metrics holds raw event counts for one variant.
type Metrics struct {
	Impressions    int
	Conversions    int
	Clicks         int
	ExitPopupShows int
}

// VariantResult is Metrics plus derived percentage rates.
type VariantResult struct {
	Metrics
	ConversionRate float64
	ClickRate      float64
}

// Parser accumulates A/B metrics across log lines. Impressions are
// deduplicated by client IP per variant, so a returning visitor counts
// once; conversions and clicks are counted per event.
type Parser struct {
	metrics map[string]*Metrics
	seenIPs map[string]map[string]struct{}
}

// NewParser returns a Parser with zeroed counters for both variants.
func NewParser() *Parser {
	p := &Parser{
		metrics: make(map[string]*Metrics, len(variants)),
		seenIPs: make(map[string]map[string]struct{}, len(variants)),
	}
	for _, v := range variants {
		p.metrics[v] = &Metrics{}
		p.seenIPs[v] = make(map[string]struct{})
	}
	return p
}

// ParseLines feeds raw log lines into the accumulated metrics.
func (p *Parser) ParseLines(lines []string) {
	for _, line := range lines {
		p.parseLine(line)
	}
}

// ParseReader scans a log stream line by line.
func (p *Parser) ParseReader(r io.Reader) error {
	sc := bufio.NewScanner(r)
	// Log lines carry full user agents; allow generous length.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.parseLine(sc.Text())
	}
	return sc.Err()
}

func (p *Parser) parseLine(line string) {
	variant := extractField(variantRe, line)
	m, ok := p.metrics[variant]
	if !ok {
		return
	}

	switch {
	case strings.Contains(line, "LANDING_PAGE"):
		ip := extractField(ipRe, line)
		if ip != "" {
			if _, seen := p.seenIPs[variant][ip]; seen {
				return
			}
			p.seenIPs[variant][ip] = struct{}{}
		}
		m.Impressions++
	case strings.Contains(line, "CONVERSION"):
		m.Conversions++
	case strings.Contains(line, "CTA_CLICK"):
		m.Clicks++
	case strings.Contains(line, "EXIT_POPUP_EVENT") && strings.Contains(line, `event="exit_popup_shown"`):
		m.ExitPopupShows++
	}
}

// Results returns per-variant counts with conversion and click rates as
// percentages rounded to two decimals. Zero impressions yield zero rates.
func (p *Parser) Results() map[string]VariantResult {
	results := make(map[string]VariantResult, len(variants))
	for _, v := range variants {
		m := *p.metrics[v]
		var convRate, clickRate float64
		if m.Impressions > 0 {
			convRate = round2(float64(m.Conversions) / float64(m.Impressions) * 100)
			clickRate = round2(float64(m.Clicks) / float64(m.Impressions) * 100)
		}
		results[v] = VariantResult{Metrics: m, ConversionRate: convRate, ClickRate: clickRate}
	}
	return results
}

// Winner names the variant with the higher conversion rate, or "tie", or
// "insufficient_data" when either variant has fewer than minImpressions.
func (p *Parser) Winner(minImpressions int) (string, map[string]VariantResult) {
	results := p.Results()

	if results["a"].Impressions < minImpressions || results["b"].Impressions < minImpressions {
		return "insufficient_data", results
	}

	switch {
	case results["a"].ConversionRate > results["b"].ConversionRate:
		return "a", results
	case results["b"].ConversionRate > results["a"].ConversionRate:
		return "b", results
	default:
		return "tie", results
	}
}

func extractField(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
