package repository

import "errors"

var (
	// ErrNotAvailable signals a forecaster cannot run on the given series
	// (e.g. shorter than its window); callers degrade to a fallback.
	ErrNotAvailable = errors.New("forecast not available for series")

	// ErrInsufficientData signals too few points to form one training pair.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrVersionNotFound signals a registry lookup miss.
	ErrVersionNotFound = errors.New("model version not found")

	// ErrNoActiveVersion signals no active version exists for (symbol, kind).
	ErrNoActiveVersion = errors.New("no active model version")

	// ErrArtifactMissing signals registry record exists but the serialized
	// weights are gone from durable storage.
	ErrArtifactMissing = errors.New("model artifact missing")
)
