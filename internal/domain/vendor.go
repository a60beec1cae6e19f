package domain

import (
	"fmt"
	"net/url"
)

// Vendor is an exhibitor registered through the vendor form.
type Vendor struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Table   string   `json:"table,omitempty"`
	Website string   `json:"website,omitempty"`
	Handle  string   `json:"handle,omitempty"`
	Images  []string `json:"images,omitempty"`
}

// Validate checks if the vendor has valid data.
func (v Vendor) Validate() error {
	if v.ID == "" {
		return ErrEmptyVendorID
	}
	if v.Name == "" {
		return ErrEmptyVendorName
	}
	if v.Website != "" && !isHTTPURL(v.Website) {
		return fmt.Errorf("%w: website %q", ErrInvalidURL, v.Website)
	}
	for _, img := range v.Images {
		if !isHTTPURL(img) {
			return fmt.Errorf("%w: image %q", ErrInvalidURL, img)
		}
	}
	return nil
}

// HasTimeline reports whether the vendor has a social handle to crawl.
func (v Vendor) HasTimeline() bool { return v.Handle != "" }

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
