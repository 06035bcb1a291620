package services

import (
	"testing"

	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/prompts"
)

func TestProfileSelector_Table(t *testing.T) {
	set := prompts.Set{prompts.Vision: "V", prompts.Meal: "M", prompts.Chat: "C"}
	sel := NewProfileSelector("text-m", "vision-m", set)

	cases := []struct {
		intent   domain.Intent
		model    string
		prompt   string
		temp     float64
		tokens   int
		modality domain.Modality
	}{
		{domain.IntentVisionRequest, "vision-m", "V", 0.2, 1000, domain.ModalityTextImage},
		{domain.IntentMealReport, "text-m", "M", 0.7, 1500, domain.ModalityText},
		{domain.IntentGeneralChat, "text-m", "C", 0.5, 800, domain.ModalityText},
	}
	for _, tc := range cases {
		p := sel.Select(tc.intent)
		if p.Intent != tc.intent || p.ModelID != tc.model || p.SystemPrompt != tc.prompt ||
			p.Temperature != tc.temp || p.MaxTokens != tc.tokens || p.Modality != tc.modality {
			t.Fatalf("profile for %s = %+v", tc.intent, p)
		}
	}
	// Vision is the most deterministic profile.
	if !(sel.Select(domain.IntentVisionRequest).Temperature < sel.Select(domain.IntentGeneralChat).Temperature) {
		t.Fatalf("vision temperature should be the lowest")
	}
}

func TestProfileSelector_PanicsOnUnmappedIntent(t *testing.T) {
	sel := NewProfileSelector("t", "v", prompts.Set{})
	for _, in := range []domain.Intent{domain.IntentOrderCode, domain.IntentUnsupported, "bogus"} {
		if _, ok := sel.Lookup(in); ok {
			t.Fatalf("Lookup(%s) should be unmapped", in)
		}
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("Select(%s) should panic", in)
				}
			}()
			sel.Select(in)
		}()
	}
}
