package model

import "encoding/json"

// Layout is the shared artifact: a keyboard layout configuration. State is
// an opaque JSON document at this layer; the share subsystem passes it
// through unchanged between persistence and broadcast.
type Layout struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Name       string          `json:"name"`
	PreviewKey string          `json:"preview_key,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
	Ctime      int64           `json:"ctime"`
	Mtime      int64           `json:"mtime"`
}

// LayoutMeta is the reduced projection returned to requesters that are
// denied access to a share link: identity and preview only, no payload.
type LayoutMeta struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewKey string `json:"preview_key,omitempty"`
}

func (l *Layout) Meta() LayoutMeta {
	return LayoutMeta{ID: l.ID, Name: l.Name, PreviewKey: l.PreviewKey}
}
