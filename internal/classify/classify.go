// Package classify maps raw pipeline failures onto a fixed error taxonomy.
//
// Every pipeline boundary (validation, extraction, analysis, persistence)
// classifies its own failures before returning, so a stored job error always
// carries one of the fixed category codes and never raw internal text.
package classify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Code identifies an error category.
type Code string

const (
	CodeRepoNotFound           Code = "repo_not_found"
	CodeRepoPrivate            Code = "repo_private"
	CodeRepoTooLarge           Code = "repo_too_large"
	CodeRepoEmpty              Code = "repo_empty"
	CodeProcessingTimeout      Code = "processing_timeout"
	CodeExtractionServiceError Code = "extraction_service_error"
	CodeAIProviderError        Code = "ai_provider_error"
	CodeAIQuotaExceeded        Code = "ai_quota_exceeded"
	CodeInsufficientCredits    Code = "insufficient_credits"
	CodePersistenceError       Code = "persistence_error"
	CodeRateLimitExceeded      Code = "rate_limit_exceeded"
	CodeUnknown                Code = "unknown"
)

// retryable is a property of the category, never of the individual failure.
var retryable = map[Code]bool{
	CodeRepoNotFound:           false,
	CodeRepoPrivate:            false,
	CodeRepoTooLarge:           false,
	CodeRepoEmpty:              false,
	CodeProcessingTimeout:      true,
	CodeExtractionServiceError: true,
	CodeAIProviderError:        true,
	CodeAIQuotaExceeded:        true,
	CodeInsufficientCredits:    false,
	CodePersistenceError:       true,
	CodeRateLimitExceeded:      true,
	CodeUnknown:                true,
}

// userMessages is the fixed vocabulary surfaced to callers.
var userMessages = map[Code]string{
	CodeRepoNotFound:           "Repository not found. Check the URL and try again.",
	CodeRepoPrivate:            "Repository is private or access is restricted.",
	CodeRepoTooLarge:           "Repository exceeds the maximum supported size.",
	CodeRepoEmpty:              "No analyzable content was found in the repository.",
	CodeProcessingTimeout:      "Processing took too long. Please try again.",
	CodeExtractionServiceError: "The content extraction service is unavailable. Please try again.",
	CodeAIProviderError:        "All configured AI providers failed. Please try again.",
	CodeAIQuotaExceeded:        "AI provider quota exhausted. Please try again later.",
	CodeInsufficientCredits:    "Insufficient credits to run this analysis.",
	CodePersistenceError:       "A storage error occurred. Please try again.",
	CodeRateLimitExceeded:      "Too many requests. Please slow down and try again.",
	CodeUnknown:                "An unexpected error occurred. Please try again.",
}

// httpStatus maps each category to an HTTP-style status code.
var httpStatus = map[Code]int{
	CodeRepoNotFound:           http.StatusNotFound,
	CodeRepoPrivate:            http.StatusForbidden,
	CodeRepoTooLarge:           http.StatusUnprocessableEntity,
	CodeRepoEmpty:              http.StatusUnprocessableEntity,
	CodeProcessingTimeout:      http.StatusGatewayTimeout,
	CodeExtractionServiceError: http.StatusBadGateway,
	CodeAIProviderError:        http.StatusBadGateway,
	CodeAIQuotaExceeded:        http.StatusTooManyRequests,
	CodeInsufficientCredits:    http.StatusPaymentRequired,
	CodePersistenceError:       http.StatusBadGateway,
	CodeRateLimitExceeded:      http.StatusTooManyRequests,
	CodeUnknown:                http.StatusInternalServerError,
}

// retryDelay is the suggested wait before resubmitting, for categories where
// one makes sense. Zero means no suggestion.
var retryDelay = map[Code]time.Duration{
	CodeProcessingTimeout:      30 * time.Second,
	CodeExtractionServiceError: time.Minute,
	CodeAIProviderError:        time.Minute,
	CodeAIQuotaExceeded:        5 * time.Minute,
	CodeRateLimitExceeded:      10 * time.Second,
	CodePersistenceError:       30 * time.Second,
}

// Error is a classified pipeline failure.
type Error struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail"`
	Stage  string `json:"stage,omitempty"`
	cause  error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether callers may resubmit after this failure.
func (e *Error) Retryable() bool {
	return retryable[e.Code]
}

// RetryAfter returns the suggested retry delay, or zero.
func (e *Error) RetryAfter() time.Duration {
	return retryDelay[e.Code]
}

// UserMessage returns the fixed-vocabulary message for this category.
func (e *Error) UserMessage() string {
	return userMessages[e.Code]
}

// HTTPStatus returns the HTTP status code for this category.
func (e *Error) HTTPStatus() int {
	return httpStatus[e.Code]
}

// WithStage annotates the error with the pipeline phase that produced it.
// Already-set stages are preserved: the orchestrator attaches context once
// and intermediate layers never overwrite it.
func (e *Error) WithStage(stage string) *Error {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// New creates a classified error with an explicit category.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Wrap creates a classified error with an explicit category and a cause.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Detail: err.Error(), cause: err}
}

// rule is one ordered pattern-match entry. First match wins.
type rule struct {
	code     Code
	patterns []string
}

// Ordering matters: more specific vocabularies come before broader ones so
// that, e.g., a provider quota message is never swallowed by the generic
// provider rule, and "deadline exceeded" never matches the size rule.
var rules = []rule{
	{CodeInsufficientCredits, []string{"insufficient credits", "credit balance"}},
	{CodeRateLimitExceeded, []string{"rate limit"}},
	{CodeAIQuotaExceeded, []string{"quota", "too many requests", "429"}},
	{CodeProcessingTimeout, []string{"timed out", "timeout", "deadline exceeded"}},
	{CodeRepoPrivate, []string{"private", "access denied", "forbidden", "403"}},
	{CodeRepoNotFound, []string{"not found", "404", "does not exist"}},
	{CodeRepoTooLarge, []string{"too large", "size limit", "exceeds maximum size"}},
	{CodeRepoEmpty, []string{"empty repository", "no analyzable content", "no content"}},
	{CodeExtractionServiceError, []string{"extraction", "ingestion"}},
	{CodePersistenceError, []string{"database", "persistence", "connection refused"}},
	{CodeAIProviderError, []string{"provider", "model", "completion"}},
}

// Classify maps a raw error onto the taxonomy. Already-classified errors pass
// through unchanged so categories assigned close to the failure site are
// never second-guessed further up the stack.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return &Error{Code: r.code, Detail: err.Error(), cause: err}
			}
		}
	}

	return &Error{Code: CodeUnknown, Detail: err.Error(), cause: err}
}
