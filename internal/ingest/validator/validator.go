// Package validator validates ingestion requests, returning per-field
// error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/studykit/qadex/internal/ingest"
)

const (
	maxCategoryLength = 256
	maxQuestionLength = 1024
	maxAnswerLength   = 1048576
	maxTags           = 16
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateRequest checks that a request carries a category, a non-empty
// question, and an answer within size limits.
func ValidateRequest(req *ingest.Request) error {
	errs := make(map[string]string)

	category := strings.TrimSpace(req.Category)
	if category == "" {
		errs["category"] = "category is required"
	} else if len(category) > maxCategoryLength {
		errs["category"] = fmt.Sprintf("category must be at most %d characters", maxCategoryLength)
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		errs["question"] = "question is required"
	} else if len(question) > maxQuestionLength {
		errs["question"] = fmt.Sprintf("question must be at most %d characters", maxQuestionLength)
	}

	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		errs["answer"] = "answer is required and must not be empty"
	} else if len(answer) > maxAnswerLength {
		errs["answer"] = fmt.Sprintf("answer must be at most %d characters", maxAnswerLength)
	}

	if len(req.Tags) > maxTags {
		errs["tags"] = fmt.Sprintf("at most %d tags are allowed", maxTags)
	}
	for _, tag := range req.Tags {
		if strings.TrimSpace(tag) == "" {
			errs["tags"] = "tags must not be blank"
			break
		}
	}

	if req.IdempotencyKey != "" && len(req.IdempotencyKey) > 255 {
		errs["idempotency_key"] = "idempotency key must be at most 255 characters"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
