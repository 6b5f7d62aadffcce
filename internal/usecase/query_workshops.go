package usecase

import (
	"context"
	"log/slog"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/pii"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// WorkshopPage is one sanitized page of a workshop listing.
type WorkshopPage struct {
	Workshops []domain.Workshop
	Total     int
}

// WorkshopService reads workshops and sanitizes them before they are returned.
type WorkshopService struct {
	workshops domain.WorkshopRepository
	sanitizer *pii.Sanitizer
	logger    *slog.Logger
}

// NewWorkshopService creates a new WorkshopService.
func NewWorkshopService(workshops domain.WorkshopRepository, sanitizer *pii.Sanitizer, logger *slog.Logger) *WorkshopService {
	return &WorkshopService{
		workshops: workshops,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// List returns the page of workshops matching filter.
func (s *WorkshopService) List(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) (*WorkshopPage, error) {
	if s.workshops == nil {
		return nil, domain.FromError(domain.ErrUnavailable)
	}
	rows, total, err := s.workshops.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to list workshops", "error", err)
		return nil, domain.FromError(err)
	}
	return &WorkshopPage{Workshops: s.sanitizer.Workshops(rows), Total: total}, nil
}

// Get returns a single workshop by id.
func (s *WorkshopService) Get(ctx context.Context, id string) (*domain.Workshop, error) {
	if s.workshops == nil {
		return nil, domain.FromError(domain.ErrUnavailable)
	}
	w, err := s.workshops.Get(ctx, id)
	if err != nil {
		if kind := domain.KindOf(err); kind == domain.KindNotFound {
			return nil, domain.NewAPIError(kind, "Workshop %q not found", id)
		}
		s.logger.Error("failed to get workshop", "error", err, "id", id)
		return nil, domain.FromError(err)
	}
	clean := s.sanitizer.Workshop(*w)
	return &clean, nil
}
