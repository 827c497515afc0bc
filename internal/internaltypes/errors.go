package internaltypes

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden: insufficient rights")
	ErrNotFound     = errors.New("not found")
)
