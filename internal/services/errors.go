// Package services implements the webhook pipeline: entitlement gating,
// generation-profile selection and reply orchestration. This file
// centralizes the service-level error values so handlers and the CLI can map
// them consistently.
package services

import "errors"

var (
	// ErrInvalidRegistration is returned when a registration lacks a
	// principal or an order reference.
	ErrInvalidRegistration = errors.New("principal and order reference are required")

	// ErrNotEntitled indicates the principal has no live subscription.
	ErrNotEntitled = errors.New("no active subscription")

	// ErrMediaUnavailable wraps failures to resolve an image message's
	// content.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrEmptyGeneration is returned when the generator produced no usable
	// candidate.
	ErrEmptyGeneration = errors.New("empty generation")
)
