package world

import "errors"

var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("file not found")
	ErrIsDirectory  = errors.New("is a directory")
)
