package service

import (
	"context"
	"strings"
	"time"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/timeutil"
	"github.com/keyforge/keyforge/internal/repo"
)

type ShareService struct {
	shares  *repo.ShareLinkRepo
	layouts *repo.LayoutRepo
	users   *UserLookup
	tokens  *TokenIssuer
	now     func() time.Time
}

func NewShareService(shares *repo.ShareLinkRepo, layouts *repo.LayoutRepo, users *UserLookup, tokens *TokenIssuer) *ShareService {
	return &ShareService{
		shares:  shares,
		layouts: layouts,
		users:   users,
		tokens:  tokens,
		now:     time.Now,
	}
}

type ShareCreateInput struct {
	ConfigID      string
	OwnerID       string
	IsPublic      bool
	AllowedEmails []string
	Role          model.Role
	ExpiresInDays int
}

func (s *ShareService) Create(ctx context.Context, in ShareCreateInput) (*model.ShareLink, error) {
	if in.ConfigID == "" || in.OwnerID == "" {
		return nil, errs.ErrInvalid
	}
	role := in.Role
	if role == "" {
		role = model.RoleViewer
	}
	if !role.Valid() {
		return nil, errs.ErrInvalid
	}
	emails := normalizeEmails(in.AllowedEmails)
	if !in.IsPublic && len(emails) == 0 {
		return nil, errs.ErrInvalid
	}
	layout, err := s.layouts.GetByID(ctx, in.ConfigID)
	if err != nil {
		return nil, err
	}
	if layout.OwnerID != in.OwnerID {
		return nil, errs.ErrForbidden
	}
	token, err := s.tokens.IssueUnique(ctx, s.shares.Exists)
	if err != nil {
		return nil, err
	}
	var expiresAt int64
	if in.ExpiresInDays > 0 {
		expiresAt = s.now().Add(time.Duration(in.ExpiresInDays) * 24 * time.Hour).Unix()
	}
	now := timeutil.NowUnix()
	link := &model.ShareLink{
		Token:         token,
		ConfigID:      in.ConfigID,
		OwnerID:       in.OwnerID,
		IsPublic:      in.IsPublic,
		AllowedEmails: emails,
		Role:          role,
		ExpiresAt:     expiresAt,
		VisitorCount:  0,
		Ctime:         now,
		Mtime:         now,
	}
	if err := s.shares.Create(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// InspectResult carries either the full record (granted) or the reduced
// layout projection plus a reason hint (denied).
type InspectResult struct {
	Granted bool              `json:"granted"`
	Role    model.Role        `json:"role,omitempty"`
	Link    *model.ShareLink  `json:"link,omitempty"`
	Layout  *model.LayoutMeta `json:"layout,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

// Inspect looks up a link and evaluates access for the requester. The visit
// counter is incremented once per call before any access evaluation, so
// denied requesters count too.
func (s *ShareService) Inspect(ctx context.Context, token, requesterID string) (*InspectResult, error) {
	link, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if count, err := s.shares.IncrementVisitorCount(ctx, token); err == nil {
		link.VisitorCount = count
	} else {
		return nil, err
	}
	requester := s.users.Resolve(ctx, requesterID)
	dec, err := Evaluate(link, requester, s.now())
	if err != nil {
		return nil, err
	}
	layout, err := s.layouts.GetByID(ctx, link.ConfigID)
	if err != nil {
		return nil, err
	}
	meta := layout.Meta()
	if !dec.Granted {
		return &InspectResult{
			Granted: false,
			Layout:  &meta,
			Reason:  DenialReason(requester),
		}, nil
	}
	return &InspectResult{
		Granted: true,
		Role:    dec.Role,
		Link:    link,
		Layout:  &meta,
	}, nil
}

// List trusts the caller-asserted ownerId; it is not re-verified against an
// authenticated identity here.
func (s *ShareService) List(ctx context.Context, configID, ownerID string) ([]*model.ShareLink, error) {
	if configID == "" || ownerID == "" {
		return nil, errs.ErrInvalid
	}
	return s.shares.ListByConfigOwner(ctx, configID, ownerID)
}

type SharePatchInput struct {
	IsPublic      *bool
	AllowedEmails *[]string
	Role          *model.Role
}

func (s *ShareService) Patch(ctx context.Context, token, ownerID string, in SharePatchInput) (*model.ShareLink, error) {
	if ownerID == "" {
		return nil, errs.ErrInvalid
	}
	link, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, errs.ErrForbidden
	}

	resultingPublic := link.IsPublic
	if in.IsPublic != nil {
		resultingPublic = *in.IsPublic
	}
	resultingEmails := link.AllowedEmails
	if in.AllowedEmails != nil {
		resultingEmails = normalizeEmails(*in.AllowedEmails)
	}
	if !resultingPublic && len(resultingEmails) == 0 {
		return nil, errs.ErrInvalid
	}

	fields := map[string]interface{}{}
	if in.IsPublic != nil {
		fields["is_public"] = boolToInt(*in.IsPublic)
	}
	if in.AllowedEmails != nil {
		encoded, err := repo.EncodeEmails(resultingEmails)
		if err != nil {
			return nil, err
		}
		fields["allowed_emails"] = encoded
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, errs.ErrInvalid
		}
		fields["role"] = string(*in.Role)
	}
	if len(fields) == 0 {
		return link, nil
	}
	fields["mtime"] = timeutil.NowUnix()
	if err := s.shares.Update(ctx, token, fields); err != nil {
		return nil, err
	}
	return s.shares.GetByToken(ctx, token)
}

func (s *ShareService) Delete(ctx context.Context, token, ownerID string) error {
	if ownerID == "" {
		return errs.ErrInvalid
	}
	link, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return errs.ErrForbidden
	}
	deleted, err := s.shares.Delete(ctx, token)
	if err != nil {
		return err
	}
	if !deleted {
		return errs.ErrNotFound
	}
	return nil
}

func normalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := map[string]struct{}{}
	for _, email := range emails {
		trimmed := strings.TrimSpace(strings.ToLower(email))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
