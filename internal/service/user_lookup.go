package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
)

// UserLookup resolves requester ids to user records with a small expirable
// cache in front of the store; join and inspect hit this on every call.
type UserLookup struct {
	users UserStore
	cache *expirable.LRU[string, *model.User]
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

func NewUserLookup(users UserStore, size int, ttl time.Duration) *UserLookup {
	l := &UserLookup{users: users}
	if size > 0 && ttl > 0 {
		l.cache = expirable.NewLRU[string, *model.User](size, nil, ttl)
	}
	return l
}

// Resolve returns nil for an empty id, an unknown id, or a store failure:
// all three are treated as an anonymous requester.
func (l *UserLookup) Resolve(ctx context.Context, userID string) *model.User {
	if userID == "" {
		return nil
	}
	if l.cache != nil {
		if cached, ok := l.cache.Get(userID); ok {
			return cached
		}
	}
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		if !errs.IsNotFound(err) {
			logutil.GetLogger(ctx).Warn("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	if l.cache != nil {
		l.cache.Add(userID, user)
	}
	return user
}
