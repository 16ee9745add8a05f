package domain

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMessageNotFound  = errors.New("message not found")
	ErrMessageDeleted   = errors.New("message already deleted")
	ErrGroupNotFound    = errors.New("group not found")
)
