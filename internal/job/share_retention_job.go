package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/keyforge/keyforge/internal/repo"
)

// ShareRetentionJob drops share links whose expiry passed more than the
// retention window ago. Expired links stay visible (and answer 410) during
// the window so owners can see what lapsed before it disappears.
type ShareRetentionJob struct {
	shares        *repo.ShareLinkRepo
	retentionDays int
	now           func() time.Time
}

func NewShareRetentionJob(shares *repo.ShareLinkRepo, retentionDays int) *ShareRetentionJob {
	return &ShareRetentionJob{
		shares:        shares,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (j *ShareRetentionJob) Name() string {
	return "share_retention"
}

func (j *ShareRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().AddDate(0, 0, -j.retentionDays).Unix()
	deleted, err := j.shares.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("purged expired share links",
			zap.Int64("deleted", deleted), zap.Int64("cutoff", cutoff))
	}
	return nil
}
