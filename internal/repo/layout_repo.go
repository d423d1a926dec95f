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

var layoutColumns = []string{"id", "owner_id", "name", "preview_key", "state", "ctime", "mtime"}

type LayoutRepo struct {
	db *sql.DB
}

func NewLayoutRepo(db *sql.DB) *LayoutRepo {
	return &LayoutRepo{db: db}
}

func (r *LayoutRepo) Create(ctx context.Context, layout *model.Layout) error {
	state := layout.State
	if len(state) == 0 {
		state = json.RawMessage("{}")
	}
	data := map[string]interface{}{
		"id":          layout.ID,
		"owner_id":    layout.OwnerID,
		"name":        layout.Name,
		"preview_key": layout.PreviewKey,
		"state":       string(state),
		"ctime":       layout.Ctime,
		"mtime":       layout.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("layouts", []map[string]interface{}{data})
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

func (r *LayoutRepo) GetByID(ctx context.Context, id string) (*model.Layout, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("layouts", where, layoutColumns)
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
	var layout model.Layout
	var state string
	if err := rows.Scan(&layout.ID, &layout.OwnerID, &layout.Name, &layout.PreviewKey,
		&state, &layout.Ctime, &layout.Mtime); err != nil {
		return nil, err
	}
	layout.State = json.RawMessage(state)
	return &layout, nil
}

// GetState returns the opaque artifact document for one layout.
func (r *LayoutRepo) GetState(ctx context.Context, id string) (json.RawMessage, error) {
	layout, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return layout.State, nil
}

// SetState overwrites the artifact document, last write wins. No version
// check happens here; concurrent writers silently supersede each other.
func (r *LayoutRepo) SetState(ctx context.Context, id string, state json.RawMessage, mtime int64) error {
	if len(state) == 0 {
		state = json.RawMessage("{}")
	}
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{"state": string(state), "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("layouts", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *LayoutRepo) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildUpdate("layouts", where, fields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *LayoutRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Layout, error) {
	where := map[string]interface{}{"owner_id": ownerID, "_orderby": "mtime desc"}
	sqlStr, args, err := builder.BuildSelect("layouts", where, layoutColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	layouts := make([]*model.Layout, 0)
	for rows.Next() {
		var layout model.Layout
		var state string
		if err := rows.Scan(&layout.ID, &layout.OwnerID, &layout.Name, &layout.PreviewKey,
			&state, &layout.Ctime, &layout.Mtime); err != nil {
			return nil, err
		}
		layout.State = json.RawMessage(state)
		layouts = append(layouts, &layout)
	}
	return layouts, rows.Err()
}
