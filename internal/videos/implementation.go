// internal/videos/implementation.go
package videos

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"videostore/internal/apperr"
)

// service implements the Service interface.
type service struct {
	repo Repository
	log  *zap.Logger
}

// NewService creates a new video catalog service instance.
func NewService(repo Repository, log *zap.Logger) Service {
	return &service{repo: repo, log: log}
}

func (s *service) ListVideos(ctx context.Context) ([]*Video, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return list, nil
}

func (s *service) GetVideo(ctx context.Context, id int64) (*Video, error) {
	return s.repo.Get(ctx, id)
}

// AddVideo creates a new title with all copies available.
func (s *service) AddVideo(ctx context.Context, title, releaseDate string, totalInventory int) (*Video, error) {
	released, err := ParseReleaseDate(releaseDate)
	if err != nil {
		return nil, err
	}
	video, err := New(title, released, totalInventory)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, video); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	s.log.Info("video added",
		zap.Int64("video_id", video.ID),
		zap.Int("total_inventory", video.TotalInventory),
	)
	return video, nil
}

// UpdateVideo replaces title, release date and catalog size. The available
// count follows the size change so copies already out stay accounted for.
func (s *service) UpdateVideo(ctx context.Context, id int64, title, releaseDate string, totalInventory int) (*Video, error) {
	title = strings.TrimSpace(title)
	if title == "" || totalInventory <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "Invalid data")
	}
	released, err := ParseReleaseDate(releaseDate)
	if err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, id, func(v *Video) error {
		if err := v.Resize(totalInventory); err != nil {
			return err
		}
		v.Title = title
		v.ReleaseDate = released
		return nil
	})
}

func (s *service) DeleteVideo(ctx context.Context, id int64) (*Video, error) {
	video, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("video deleted", zap.Int64("video_id", id))
	return video, nil
}
