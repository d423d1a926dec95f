package service

import (
	"context"
	"encoding/json"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/timeutil"
	"github.com/keyforge/keyforge/internal/repo"
)

// LayoutService is the thin ownership-checked boundary around the artifact
// store. The realtime path bypasses it on purpose: share-session updates go
// through the gateway's own apply function.
type LayoutService struct {
	layouts *repo.LayoutRepo
}

func NewLayoutService(layouts *repo.LayoutRepo) *LayoutService {
	return &LayoutService{layouts: layouts}
}

type LayoutCreateInput struct {
	OwnerID string
	Name    string
	State   json.RawMessage
}

func (s *LayoutService) Create(ctx context.Context, in LayoutCreateInput) (*model.Layout, error) {
	if in.OwnerID == "" || in.Name == "" {
		return nil, errs.ErrInvalid
	}
	now := timeutil.NowUnix()
	layout := &model.Layout{
		ID:      newID(),
		OwnerID: in.OwnerID,
		Name:    in.Name,
		State:   in.State,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.layouts.Create(ctx, layout); err != nil {
		return nil, err
	}
	return layout, nil
}

func (s *LayoutService) Get(ctx context.Context, ownerID, id string) (*model.Layout, error) {
	layout, err := s.layouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if layout.OwnerID != ownerID {
		return nil, errs.ErrForbidden
	}
	return layout, nil
}

func (s *LayoutService) List(ctx context.Context, ownerID string) ([]*model.Layout, error) {
	if ownerID == "" {
		return nil, errs.ErrInvalid
	}
	return s.layouts.ListByOwner(ctx, ownerID)
}

type LayoutUpdateInput struct {
	Name       *string
	State      json.RawMessage
	PreviewKey *string
}

func (s *LayoutService) Update(ctx context.Context, ownerID, id string, in LayoutUpdateInput) (*model.Layout, error) {
	layout, err := s.layouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if layout.OwnerID != ownerID {
		return nil, errs.ErrForbidden
	}
	fields := map[string]interface{}{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, errs.ErrInvalid
		}
		fields["name"] = *in.Name
	}
	if in.State != nil {
		fields["state"] = string(in.State)
	}
	if in.PreviewKey != nil {
		fields["preview_key"] = *in.PreviewKey
	}
	if len(fields) == 0 {
		return layout, nil
	}
	fields["mtime"] = timeutil.NowUnix()
	if err := s.layouts.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.layouts.GetByID(ctx, id)
}
