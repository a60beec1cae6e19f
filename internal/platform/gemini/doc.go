// Package gemini classifies vendor images with Google's Gemini API.
//
// The package is an infrastructure adapter: the crawl pipeline depends on the
// [Classifier] interface and never sees genai types. A request sends the
// image URL inside a templated prompt and asks for a JSON answer, which is
// parsed and validated into a domain.ImageLabel.
//
// Safety blocks and malformed answers are reported as [ErrContentBlocked] and
// [ErrInvalidResponse]. Transport failures are returned wrapped so callers
// can decide whether to retry.
package gemini
