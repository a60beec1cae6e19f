package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the classifier configuration is unusable.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyImageURL is returned when Classify is called without an image.
	ErrEmptyImageURL = errors.New("image url cannot be empty")

	// ErrContentBlocked is returned when the model refused on safety grounds.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrInvalidResponse is returned when the model answer cannot be used.
	ErrInvalidResponse = errors.New("invalid response from model")
)
