package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/dbutil"
	"github.com/keyforge/keyforge/internal/pkg/errs"
)

var shareLinkColumns = []string{
	"token", "config_id", "owner_id", "is_public", "allowed_emails",
	"role", "expires_at", "visitor_count", "ctime", "mtime",
}

type ShareLinkRepo struct {
	db *sql.DB
}

func NewShareLinkRepo(db *sql.DB) *ShareLinkRepo {
	return &ShareLinkRepo{db: db}
}

func (r *ShareLinkRepo) Create(ctx context.Context, link *model.ShareLink) error {
	emails, err := EncodeEmails(link.AllowedEmails)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"token":          link.Token,
		"config_id":      link.ConfigID,
		"owner_id":       link.OwnerID,
		"is_public":      boolToInt(link.IsPublic),
		"allowed_emails": emails,
		"role":           string(link.Role),
		"expires_at":     link.ExpiresAt,
		"visitor_count":  link.VisitorCount,
		"ctime":          link.Ctime,
		"mtime":          link.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("share_links", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ShareLinkRepo) GetByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	where := map[string]interface{}{"token": token}
	sqlStr, args, err := builder.BuildSelect("share_links", where, shareLinkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, errs.ErrNotFound
	}
	return scanShareLink(rows)
}

func (r *ShareLinkRepo) Exists(ctx context.Context, token string) (bool, error) {
	_, err := r.GetByToken(ctx, token)
	if err == errs.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies only the supplied fields; callers build the partial map.
func (r *ShareLinkRepo) Update(ctx context.Context, token string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	where := map[string]interface{}{"token": token}
	sqlStr, args, err := builder.BuildUpdate("share_links", where, fields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ShareLinkRepo) Delete(ctx context.Context, token string) (bool, error) {
	where := map[string]interface{}{"token": token}
	sqlStr, args, err := builder.BuildDelete("share_links", where)
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByConfigOwner returns every link for the (config, owner) pair,
// newest first.
func (r *ShareLinkRepo) ListByConfigOwner(ctx context.Context, configID, ownerID string) ([]*model.ShareLink, error) {
	where := map[string]interface{}{
		"config_id": configID,
		"owner_id":  ownerID,
		"_orderby":  "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("share_links", where, shareLinkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	links := make([]*model.ShareLink, 0)
	for rows.Next() {
		link, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// IncrementVisitorCount bumps the counter by one and returns the new value.
func (r *ShareLinkRepo) IncrementVisitorCount(ctx context.Context, token string) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"UPDATE share_links SET visitor_count = visitor_count + 1 WHERE token = ?",
		[]interface{}{token},
	)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, errs.ErrNotFound
	}
	link, err := r.GetByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	return link.VisitorCount, nil
}

// DeleteExpiredBefore removes links whose expiry passed before cutoff.
// Used by the retention job only; the access path never deletes.
func (r *ShareLinkRepo) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"DELETE FROM share_links WHERE expires_at > 0 AND expires_at < ?",
		[]interface{}{cutoff},
	)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanShareLink(rows *sql.Rows) (*model.ShareLink, error) {
	var link model.ShareLink
	var isPublic int
	var role, emails string
	if err := rows.Scan(&link.Token, &link.ConfigID, &link.OwnerID, &isPublic, &emails,
		&role, &link.ExpiresAt, &link.VisitorCount, &link.Ctime, &link.Mtime); err != nil {
		return nil, err
	}
	link.IsPublic = isPublic != 0
	link.Role = model.Role(role)
	if err := json.Unmarshal([]byte(emails), &link.AllowedEmails); err != nil {
		return nil, err
	}
	return &link, nil
}

// EncodeEmails renders an allow-list the way the share_links table stores
// it. Exposed for callers building partial update maps.
func EncodeEmails(emails []string) (string, error) {
	if emails == nil {
		emails = []string{}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
