package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when no usable entry exists in the cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrFetchFailed is returned when the fetch collaborator could not load a page
	ErrFetchFailed = errors.New("fetch failed")

	// ErrFetchTimeout is returned when a fetch exceeded its deadline
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrExtractionSkip marks a card that lacks a required field
	ErrExtractionSkip = errors.New("card skipped")

	// ErrExtractionFailed is returned when a page had cards but none produced a product
	ErrExtractionFailed = errors.New("no usable products extracted")
)

// ParseError is returned when localized numeric text holds no digits
type ParseError struct {
	Input string
	What  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s from %q", e.What, e.Input)
}

// SkipError explains why a card was dropped. It matches ErrExtractionSkip.
type SkipError struct {
	Field  string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("card skipped: %s %s", e.Field, e.Reason)
}

func (e *SkipError) Is(target error) bool {
	return target == ErrExtractionSkip
}

// Skip builds a SkipError for the given field
func Skip(field, reason string) error {
	return &SkipError{Field: field, Reason: reason}
}

// SourceError wraps a failure that left a whole store without products
type SourceError struct {
	Source SourceID
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *SourceError) Unwrap() error {
	return e.Err
}
