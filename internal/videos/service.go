// internal/videos/service.go
package videos

import (
	"context"
)

// Service defines the interface for the video catalog service.
type Service interface {
	ListVideos(ctx context.Context) ([]*Video, error)
	GetVideo(ctx context.Context, id int64) (*Video, error)
	AddVideo(ctx context.Context, title, releaseDate string, totalInventory int) (*Video, error)
	UpdateVideo(ctx context.Context, id int64, title, releaseDate string, totalInventory int) (*Video, error)
	DeleteVideo(ctx context.Context, id int64) (*Video, error)
}

// Repository persists videos. Update runs apply on the locked row and saves
// the result; a missing video is an apperr.NotFound error. Delete refuses
// videos with open rentals with apperr.HasOpenRentals.
type Repository interface {
	List(ctx context.Context) ([]*Video, error)
	Get(ctx context.Context, id int64) (*Video, error)
	Create(ctx context.Context, v *Video) error
	Update(ctx context.Context, id int64, apply func(*Video) error) (*Video, error)
	Delete(ctx context.Context, id int64) (*Video, error)
}
