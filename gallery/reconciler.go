package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-backend/lock"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/models"
	"storefront-backend/storage"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// Report counts the repairs made by one sweep.
type Report struct {
	PendingActivated  int `json:"pending_activated"`
	PendingDiscarded  int `json:"pending_discarded"`
	OrphanTempRows    int `json:"orphan_temp_rows"`
	ExpiredTempImages int `json:"expired_temp_images"`
	BusySkipped       int `json:"busy_skipped"`
}

// Reconciler settles state left behind by interrupted promotions and garbage
// collects abandoned uploads.
type Reconciler struct {
	DB      *gorm.DB
	Store   storage.Backend
	Locker  lock.Locker
	Log     *logger.Logger
	Metrics *metrics.GalleryMetrics

	// PendingGrace is how long a pending gallery row may sit before it is settled.
	PendingGrace time.Duration
	// TempTTL is how long an unpromoted upload is kept.
	TempTTL time.Duration

	now func() time.Time
}

func NewReconciler(db *gorm.DB, store storage.Backend, locker lock.Locker, log *logger.Logger,
	m *metrics.GalleryMetrics, pendingGrace, tempTTL time.Duration) *Reconciler {
	return &Reconciler{
		DB:           db,
		Store:        store,
		Locker:       locker,
		Log:          log,
		Metrics:      m,
		PendingGrace: pendingGrace,
		TempTTL:      tempTTL,
		now:          time.Now,
	}
}

// Sweep runs one reconciliation pass:
//   - pending gallery rows past the grace period are activated when their file
//     and thumbnail reached the gallery (a thumbnail still in temp is moved
//     over first) and discarded with their files otherwise;
//   - temp rows whose upload file is gone are deleted;
//   - temp uploads older than TempTTL are deleted with their files.
//
// Items locked by an in-flight promotion are left for the next pass.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	var report Report
	errs := multierr.Combine(
		r.settlePending(ctx, &report),
		r.collectTemp(ctx, &report),
	)

	r.Metrics.AddSweepAction("pending_activated", report.PendingActivated)
	r.Metrics.AddSweepAction("pending_discarded", report.PendingDiscarded)
	r.Metrics.AddSweepAction("orphan_temp_row", report.OrphanTempRows)
	r.Metrics.AddSweepAction("expired_temp_image", report.ExpiredTempImages)
	r.Metrics.IncSweepRun(errs != nil)

	return report, errs
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := r.Sweep(ctx)
		logCtx := r.Log.WithFields(ctx, map[string]any{
			"pending_activated":   report.PendingActivated,
			"pending_discarded":   report.PendingDiscarded,
			"orphan_temp_rows":    report.OrphanTempRows,
			"expired_temp_images": report.ExpiredTempImages,
		})
		if err != nil && ctx.Err() == nil {
			r.Log.Error(logCtx, "gallery sweep finished with errors", err)
		} else {
			r.Log.Debug(logCtx, "gallery sweep finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) settlePending(ctx context.Context, report *Report) error {
	cutoff := r.now().Add(-r.PendingGrace)
	var pending []models.ProductImage
	if err := r.DB.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.ImageStatePending, cutoff).
		Order("id ASC").Limit(sweepBatchSize).Find(&pending).Error; err != nil {
		return fmt.Errorf("load pending images: %w", err)
	}

	var errs error
	for _, img := range pending {
		if err := r.settleOne(ctx, img, report); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pending image %d: %w", img.ID, err))
		}
	}
	return errs
}

func (r *Reconciler) settleOne(ctx context.Context, img models.ProductImage, report *Report) error {
	if img.TempImageID != nil {
		lease, err := r.Locker.Acquire(ctx, LockKey(*img.TempImageID))
		if errors.Is(err, lock.ErrLocked) {
			report.BusySkipped++
			return nil
		}
		if err != nil {
			return err
		}
		defer lease.Release(context.WithoutCancel(ctx))
	}

	mainPath, thumbPath := storage.ProductPath(img.Image), storage.ProductPath(models.ThumbName(img.Image))
	inGallery, err := r.Store.Exists(ctx, mainPath)
	if err != nil {
		return err
	}
	if !inGallery {
		return r.discardPending(ctx, img, report)
	}

	thumbInGallery, err := r.Store.Exists(ctx, thumbPath)
	if err != nil {
		return err
	}
	if !thumbInGallery {
		recovered, err := r.recoverThumb(ctx, img, thumbPath)
		if err != nil {
			return err
		}
		if !recovered {
			if err := r.Store.Remove(ctx, mainPath); err != nil {
				return err
			}
			return r.discardPending(ctx, img, report)
		}
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProductImage{}).Where("id = ?", img.ID).
			Updates(map[string]any{"state": models.ImageStateActive, "temp_image_id": nil}).Error; err != nil {
			return err
		}
		if img.TempImageID == nil {
			return nil
		}
		return tx.Delete(&models.TempImage{}, *img.TempImageID).Error
	})
	if err != nil {
		return err
	}
	report.PendingActivated++
	return nil
}

// recoverThumb moves the upload's thumbnail into the gallery next to an image
// whose thumbnail move never happened. It reports false when no thumbnail is left.
func (r *Reconciler) recoverThumb(ctx context.Context, img models.ProductImage, thumbPath string) (bool, error) {
	if img.TempImageID == nil {
		return false, nil
	}
	var temp models.TempImage
	found := r.DB.WithContext(ctx).Limit(1).Find(&temp, *img.TempImageID)
	if found.Error != nil {
		return false, found.Error
	}
	if found.RowsAffected == 0 {
		return false, nil
	}
	err := r.Store.Move(ctx, storage.TempPath(models.ThumbName(temp.Name)), thumbPath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *Reconciler) discardPending(ctx context.Context, img models.ProductImage, report *Report) error {
	if err := r.Store.Remove(ctx, storage.ProductPath(models.ThumbName(img.Image))); err != nil {
		return err
	}
	if err := r.DB.WithContext(ctx).Delete(&models.ProductImage{}, img.ID).Error; err != nil {
		return err
	}
	report.PendingDiscarded++
	return nil
}

func (r *Reconciler) collectTemp(ctx context.Context, report *Report) error {
	expiry := r.now().Add(-r.TempTTL)
	var temps []models.TempImage
	var errs error

	res := r.DB.WithContext(ctx).Order("id ASC").FindInBatches(&temps, sweepBatchSize, func(_ *gorm.DB, _ int) error {
		for _, temp := range temps {
			if err := r.collectOne(ctx, temp, expiry, report); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("temp image %d: %w", temp.ID, err))
			}
		}
		return ctx.Err()
	})
	if res.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("scan temp images: %w", res.Error))
	}
	return errs
}

func (r *Reconciler) collectOne(ctx context.Context, temp models.TempImage, expiry time.Time, report *Report) error {
	lease, err := r.Locker.Acquire(ctx, LockKey(temp.ID))
	if errors.Is(err, lock.ErrLocked) {
		report.BusySkipped++
		return nil
	}
	if err != nil {
		return err
	}
	defer lease.Release(context.WithoutCancel(ctx))

	if temp.CreatedAt.Before(expiry) {
		if err := multierr.Combine(
			r.Store.Remove(ctx, storage.TempPath(temp.Name)),
			r.Store.Remove(ctx, storage.TempPath(models.ThumbName(temp.Name))),
		); err != nil {
			return err
		}
		if err := r.DB.WithContext(ctx).Delete(&models.TempImage{}, temp.ID).Error; err != nil {
			return err
		}
		report.ExpiredTempImages++
		return nil
	}

	exists, err := r.Store.Exists(ctx, storage.TempPath(temp.Name))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := r.DB.WithContext(ctx).Delete(&models.TempImage{}, temp.ID).Error; err != nil {
		return err
	}
	report.OrphanTempRows++
	return nil
}
