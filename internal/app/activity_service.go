package app

import (
	"context"

	"focusblock/internal/domain"
)

// ActivityService exposes the read side of the activity log.
type ActivityService struct {
	repo domain.ActivityRepository
}

// NewActivityService creates an ActivityService backed by repo.
func NewActivityService(repo domain.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// ListActivityInput holds activity filters and paging. User is only
// honoured for admins.
type ListActivityInput struct {
	Page       *int
	Limit      *int
	User       string
	ResourceID string
	Action     string
}

// List returns a page of activity entries, newest first.
func (s *ActivityService) List(ctx context.Context, actor domain.Identity, in ListActivityInput) (_ Page[domain.ActivityEntry], err error) {
	ctx, span := startSpan(ctx, "ActivityService.List")
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return Page[domain.ActivityEntry]{}, err
	}

	var errs fieldErrors
	page, limit := normalizePage(in.Page, in.Limit, &errs)
	action := domain.Action(in.Action)
	if action != "" && !action.Valid() {
		errs.add("action", "Invalid action")
	}
	if err := errs.err(); err != nil {
		return Page[domain.ActivityEntry]{}, err
	}

	filter := domain.ActivityFilter{
		User:       domain.ScopeOwner(actor, in.User),
		ResourceID: in.ResourceID,
		Action:     action,
	}
	return paginate(ctx, page, limit,
		func(ctx context.Context) (int, error) {
			return s.repo.CountActivity(ctx, filter)
		},
		func(ctx context.Context, offset, limit int) ([]domain.ActivityEntry, error) {
			return s.repo.ListActivity(ctx, filter, offset, limit)
		},
	)
}
