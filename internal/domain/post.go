package domain

import "time"

// Post is a single entry of a vendor's social timeline.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Media     []string  `json:"media,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks if the post has valid data.
func (p Post) Validate() error {
	if p.ID == "" {
		return ErrEmptyPostID
	}
	if p.Author == "" {
		return ErrEmptyPostAuthor
	}
	return nil
}

// ImageLabel is the classifier's verdict on one image.
type ImageLabel struct {
	URL        string  `json:"url"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Validate checks if the label has valid data.
func (l ImageLabel) Validate() error {
	if !isHTTPURL(l.URL) {
		return ErrInvalidURL
	}
	if l.Label == "" {
		return ErrEmptyLabel
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}
