package models

import "errors"

// Common errors for store and file operations.
var (
	// Store errors
	ErrStoreNotFound  = errors.New("store not found")
	ErrDuplicateStore = errors.New("store already exists")

	// API key errors
	ErrAPIKeyNotFound  = errors.New("api key not found")
	ErrDuplicateAPIKey = errors.New("api key already exists")
	ErrAPIKeyRevoked   = errors.New("api key revoked")

	// File errors
	ErrFileNotFound  = errors.New("file not found")
	ErrFileExists    = errors.New("file already exists")
	ErrPathInvalid   = errors.New("invalid file path")
	ErrContentTooBig = errors.New("file content exceeds size limit")
)
