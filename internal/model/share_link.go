package model

import (
	"strings"
	"time"
)

// ShareLink grants time- and role-scoped access to one layout via an
// unguessable token. The realtime path never mutates a link except through
// the visitor counter.
type ShareLink struct {
	Token         string   `json:"token"`
	ConfigID      string   `json:"config_id"`
	OwnerID       string   `json:"owner_id"`
	IsPublic      bool     `json:"is_public"`
	AllowedEmails []string `json:"allowed_emails"`
	Role          Role     `json:"role"`
	ExpiresAt     int64    `json:"expires_at"` // unix seconds, 0 = never expires
	VisitorCount  int64    `json:"visitor_count"`
	Ctime         int64    `json:"ctime"`
	Mtime         int64    `json:"mtime"`
}

func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt > 0 && now.Unix() > l.ExpiresAt
}

func (l *ShareLink) AllowsEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, allowed := range l.AllowedEmails {
		if strings.EqualFold(allowed, email) {
			return true
		}
	}
	return false
}
