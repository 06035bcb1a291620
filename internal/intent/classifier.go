// Package intent classifies inbound events into pipeline intents.
//
// Classification is an ordered list of rules evaluated first-match-wins. The
// list is exposed through Rules so the ordering itself is a testable
// contract. No rule performs I/O; a Classifier is safe for concurrent use.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

const (
	defaultMinDigits = 9
	defaultMaxDigits = 10
)

// DefaultMealKeywords is the built-in meal vocabulary (Traditional and
// Simplified Chinese plus English). Matching is case-folded substring.
var DefaultMealKeywords = []string{
	"早餐", "午餐", "晚餐", "宵夜", "早午餐", "點心", "下午茶", "便當",
	"早饭", "午饭", "晚饭", "吃了", "喝了", "熱量", "热量", "卡路里",
	"breakfast", "brunch", "lunch", "dinner", "snack", "meal", "calories",
}

// Rule maps a predicate to an intent. Text is the normalized message body
// (empty for non-text events).
type Rule struct {
	Name   string
	Intent domain.Intent
	Match  func(ev domain.InboundEvent, text string) bool
}

// Options tunes the classifier. Zero values select the defaults.
type Options struct {
	MinDigits    int
	MaxDigits    int
	MealKeywords []string
}

// Classifier labels events with a domain.Intent.
type Classifier struct {
	rules    []Rule
	codeRE   *regexp.Regexp
	keywords []string
}

// New builds a Classifier. The order-code rule accepts an exact full-string
// run of MinDigits..MaxDigits ASCII digits after normalization.
func New(opts Options) *Classifier {
	minD, maxD := opts.MinDigits, opts.MaxDigits
	if minD <= 0 {
		minD = defaultMinDigits
	}
	if maxD <= 0 {
		maxD = defaultMaxDigits
	}
	if maxD < minD {
		maxD = minD
	}
	kws := opts.MealKeywords
	if len(kws) == 0 {
		kws = DefaultMealKeywords
	}
	c := &Classifier{
		codeRE:   regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d,%d}$`, minD, maxD)),
		keywords: foldAll(kws),
	}
	c.rules = []Rule{
		{
			Name:   "image",
			Intent: domain.IntentVisionRequest,
			Match:  func(ev domain.InboundEvent, _ string) bool { return ev.Kind == domain.KindImage },
		},
		{
			Name:   "order-code",
			Intent: domain.IntentOrderCode,
			Match: func(ev domain.InboundEvent, text string) bool {
				return ev.Kind == domain.KindText && c.codeRE.MatchString(text)
			},
		},
		{
			Name:   "meal-keyword",
			Intent: domain.IntentMealReport,
			Match: func(ev domain.InboundEvent, text string) bool {
				return ev.Kind == domain.KindText && c.containsKeyword(text)
			},
		},
		{
			Name:   "text",
			Intent: domain.IntentGeneralChat,
			Match:  func(ev domain.InboundEvent, _ string) bool { return ev.Kind == domain.KindText },
		},
	}
	return c
}

// Classify returns the first matching rule's intent, or IntentUnsupported
// when no rule matches (non-text, non-image events).
func (c *Classifier) Classify(ev domain.InboundEvent) domain.Intent {
	text := ""
	if ev.Kind == domain.KindText {
		text = Normalize(ev.Text)
	}
	for _, r := range c.rules {
		if r.Match(ev, text) {
			return r.Intent
		}
	}
	return domain.IntentUnsupported
}

// OrderCode returns the normalized order code carried by ev, if any.
func (c *Classifier) OrderCode(ev domain.InboundEvent) (string, bool) {
	if ev.Kind != domain.KindText {
		return "", false
	}
	text := Normalize(ev.Text)
	if !c.codeRE.MatchString(text) {
		return "", false
	}
	return text, true
}

// Rules returns a copy of the ordered rule list.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Normalize trims the text and narrows full-width characters, so "１２３"
// typed on a CJK keyboard compares equal to "123".
func Normalize(s string) string {
	return strings.TrimSpace(width.Narrow.String(s))
}

func (c *Classifier) containsKeyword(text string) bool {
	folded := cases.Fold().String(text)
	for _, kw := range c.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, cases.Fold().String(width.Narrow.String(s)))
	}
	return out
}
