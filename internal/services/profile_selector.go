package services

import (
	"fmt"

	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/prompts"
)

// ProfileSelector maps each generating intent to a fixed GenerationProfile.
type ProfileSelector struct {
	profiles map[domain.Intent]domain.GenerationProfile
}

// NewProfileSelector builds the static profile table.
func NewProfileSelector(textModel, visionModel string, p prompts.Set) *ProfileSelector {
	return &ProfileSelector{profiles: map[domain.Intent]domain.GenerationProfile{
		domain.IntentVisionRequest: {
			Intent:       domain.IntentVisionRequest,
			ModelID:      visionModel,
			SystemPrompt: p.Get(prompts.Vision),
			Temperature:  0.2,
			MaxTokens:    1000,
			Modality:     domain.ModalityTextImage,
		},
		domain.IntentMealReport: {
			Intent:       domain.IntentMealReport,
			ModelID:      textModel,
			SystemPrompt: p.Get(prompts.Meal),
			Temperature:  0.7,
			MaxTokens:    1500,
			Modality:     domain.ModalityText,
		},
		domain.IntentGeneralChat: {
			Intent:       domain.IntentGeneralChat,
			ModelID:      textModel,
			SystemPrompt: p.Get(prompts.Chat),
			Temperature:  0.5,
			MaxTokens:    800,
			Modality:     domain.ModalityText,
		},
	}}
}

// Lookup returns the profile for intent and whether one is mapped.
func (s *ProfileSelector) Lookup(intent domain.Intent) (domain.GenerationProfile, bool) {
	p, ok := s.profiles[intent]
	return p, ok
}

// Select returns the profile for intent. Asking for an intent that never
// generates (order-code, unsupported) is a programming error and panics.
func (s *ProfileSelector) Select(intent domain.Intent) domain.GenerationProfile {
	p, ok := s.profiles[intent]
	if !ok {
		panic(fmt.Sprintf("services: no generation profile for intent %q", intent))
	}
	return p
}
