package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidUpload    = errors.New("invalid upload")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrGenerationEmpty  = errors.New("generation returned no image")
	ErrGenerationFailed = errors.New("generation failed")
	ErrPublishFailed    = errors.New("publish failed")
)
