package domain

import "time"

// ConEvent is a convention event listed by the event API.
type ConEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Location string    `json:"location,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
}

// Validate checks if the event has valid data.
func (e ConEvent) Validate() error {
	if e.ID == "" {
		return ErrEmptyEventID
	}
	if e.Title == "" {
		return ErrEmptyEventTitle
	}
	if !e.StartsAt.IsZero() && !e.EndsAt.IsZero() && e.EndsAt.Before(e.StartsAt) {
		return ErrInvalidEventRange
	}
	return nil
}
