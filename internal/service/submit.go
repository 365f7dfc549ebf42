package service

import (
	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/validation"
)

// SubmitResult is the outcome of an intake call. OK is false when the caller
// should be answered with 422: validation failure or a blocked sender.
type SubmitResult struct {
	OK          bool                   `json:"ok"`
	ID          string                 `json:"id,omitempty"`
	Status      model.Status           `json:"status"`
	Validation  []validation.Violation `json:"validation"`
	SpamFlags   []string               `json:"spamFlags"`
	SpamMessage string                 `json:"spamMessage,omitempty"`
}

func newSubmitResult() *SubmitResult {
	return &SubmitResult{Validation: []validation.Violation{}, SpamFlags: []string{}}
}
