package service

import (
	"errors"

	"github.com/backy/backend/internal/moderation"
)

var (
	// ErrInvalidStatus is returned for a status the record cannot take.
	ErrInvalidStatus = moderation.ErrInvalidStatus

	// ErrFormInactive is returned when a disabled form receives a submission.
	ErrFormInactive = errors.New("form is not accepting submissions")
)
