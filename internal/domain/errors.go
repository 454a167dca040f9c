package domain

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrContentMismatch     = errors.New("file content does not match its extension")
	ErrNotFound            = errors.New("not found")

	// Query path failures. The answer pipeline converts all of these into
	// the fallback answer; they only ever reach logs.
	ErrEmbedding  = errors.New("embedding failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
)
