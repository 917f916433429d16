// internal/videos/domain.go
package videos

import (
	"strings"
	"time"

	"videostore/internal/apperr"
)

// Video is a catalog title with a finite number of copies.
type Video struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	ReleaseDate        time.Time `json:"release_date"`
	TotalInventory     int       `json:"total_inventory"`
	AvailableInventory int       `json:"available_inventory"`
}

// New returns a video with every copy on the shelf.
func New(title string, releaseDate time.Time, totalInventory int) (*Video, error) {
	title = strings.TrimSpace(title)
	if title == "" || releaseDate.IsZero() || totalInventory <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "Invalid data")
	}
	return &Video{
		Title:              title,
		ReleaseDate:        releaseDate,
		TotalInventory:     totalInventory,
		AvailableInventory: totalInventory,
	}, nil
}

var releaseDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// ParseReleaseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseReleaseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.New(apperr.InvalidInput, "Invalid data: release_date %q is not a date", raw)
}

// NotFound reports a video lookup miss.
func NotFound(id int64) error {
	return apperr.New(apperr.NotFound, "Video %d was not found", id)
}

// HasOpenRentals reports a video with copies still out.
func HasOpenRentals(id int64, open int) error {
	return apperr.New(apperr.HasOpenRentals, "Video %d has %d open rentals", id, open)
}
