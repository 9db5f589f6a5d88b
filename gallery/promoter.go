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
	"storefront-backend/utils"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Promoted gallery files always get this extension, whatever the upload format was.
const promotedExt = ".jpg"

type Outcome string

const (
	OutcomePromoted Outcome = "promoted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

var ErrTempImageBusy = errors.New("temporary image is being promoted by another request")

// Result reports what happened to one temporary image id.
type Result struct {
	TempImageID uint                 `json:"temp_image_id"`
	Outcome     Outcome              `json:"outcome"`
	Image       *models.ProductImage `json:"image,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Promoter moves temporary uploads into a product's permanent gallery.
type Promoter struct {
	DB      *gorm.DB
	Store   storage.Backend
	Locker  lock.Locker
	Log     *logger.Logger
	Metrics *metrics.GalleryMetrics

	newName func() string
}

func NewPromoter(db *gorm.DB, store storage.Backend, locker lock.Locker, log *logger.Logger, m *metrics.GalleryMetrics) *Promoter {
	return &Promoter{
		DB:      db,
		Store:   store,
		Locker:  locker,
		Log:     log,
		Metrics: m,
		newName: func() string { return utils.GenerateImageName(promotedExt) },
	}
}

// LockKey is the lock held while a temporary image changes hands.
func LockKey(tempImageID uint) string {
	return fmt.Sprintf("temp-image:%d", tempImageID)
}

// Promote attaches each temporary image to productID, in input order. Every id
// gets a Result; a failed id does not stop the rest and images promoted before
// it stay promoted. The returned error combines the per-item failures.
func (p *Promoter) Promote(ctx context.Context, productID uint, tempImageIDs []uint) ([]Result, error) {
	start := time.Now()
	defer func() { p.Metrics.ObservePromotion(time.Since(start)) }()

	results := make([]Result, 0, len(tempImageIDs))
	var errs error
	for _, id := range tempImageIDs {
		itemCtx := p.Log.WithFields(ctx, map[string]any{"product_id": productID, "temp_image_id": id})

		res, err := p.promoteOne(itemCtx, productID, id)
		if err != nil {
			res.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("temp image %d: %w", id, err))
			p.Log.Error(itemCtx, "gallery promotion failed", err)
		} else {
			p.Log.Info(p.Log.WithField(itemCtx, "outcome", res.Outcome), "gallery promotion")
		}
		p.Metrics.IncPromotion(string(res.Outcome))
		results = append(results, res)
	}
	return results, errs
}

func (p *Promoter) promoteOne(ctx context.Context, productID, tempImageID uint) (Result, error) {
	res := Result{TempImageID: tempImageID, Outcome: OutcomeFailed}

	lease, err := p.Locker.Acquire(ctx, LockKey(tempImageID))
	if errors.Is(err, lock.ErrLocked) {
		return res, ErrTempImageBusy
	}
	if err != nil {
		return res, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			p.Log.Error(ctx, "release promotion lock", err)
		}
	}()

	var temp models.TempImage
	found := p.DB.WithContext(ctx).Limit(1).Find(&temp, tempImageID)
	if found.Error != nil {
		return res, fmt.Errorf("load temp image: %w", found.Error)
	}
	if found.RowsAffected == 0 {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	newName := p.newName()

	if err := p.Store.EnsureDir(ctx, storage.ProductDir); err != nil {
		return res, fmt.Errorf("ensure gallery dir: %w", err)
	}

	image := models.ProductImage{
		ProductID:   productID,
		Image:       newName,
		State:       models.ImageStatePending,
		TempImageID: &temp.ID,
	}
	if err := p.DB.WithContext(ctx).Create(&image).Error; err != nil {
		return res, fmt.Errorf("record pending image: %w", err)
	}

	mainSrc, mainDst := storage.TempPath(temp.Name), storage.ProductPath(newName)
	if err := p.Store.Move(ctx, mainSrc, mainDst); err != nil {
		return res, multierr.Append(fmt.Errorf("move image: %w", err), p.discardPending(ctx, image.ID))
	}

	thumbSrc, thumbDst := storage.TempPath(models.ThumbName(temp.Name)), storage.ProductPath(models.ThumbName(newName))
	if err := p.Store.Move(ctx, thumbSrc, thumbDst); err != nil {
		err = fmt.Errorf("move thumbnail: %w", err)
		if rbErr := p.Store.Move(ctx, mainDst, mainSrc); rbErr != nil {
			// The image stays in the gallery with its pending row; the sweep settles it.
			return res, multierr.Append(err, fmt.Errorf("restore image: %w", rbErr))
		}
		return res, multierr.Append(err, p.discardPending(ctx, image.ID))
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ProductImage{}).Where("id = ?", image.ID).
			Updates(map[string]any{"state": models.ImageStateActive, "temp_image_id": nil}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TempImage{}, temp.ID).Error
	})
	if err != nil {
		return res, fmt.Errorf("commit gallery image: %w", err)
	}

	image.State = models.ImageStateActive
	image.TempImageID = nil
	image.ImageURL = p.Store.URL(mainDst)
	image.ThumbURL = p.Store.URL(thumbDst)
	res.Outcome = OutcomePromoted
	res.Image = &image
	return res, nil
}

func (p *Promoter) discardPending(ctx context.Context, imageID uint) error {
	if err := p.DB.WithContext(context.WithoutCancel(ctx)).Delete(&models.ProductImage{}, imageID).Error; err != nil {
		return fmt.Errorf("discard pending image: %w", err)
	}
	return nil
}

// Promoted returns the images of the promoted results, in order.
func Promoted(results []Result) []models.ProductImage {
	return lo.FilterMap(results, func(r Result, _ int) (models.ProductImage, bool) {
		if r.Outcome != OutcomePromoted || r.Image == nil {
			return models.ProductImage{}, false
		}
		return *r.Image, true
	})
}

// Failed reports whether any result failed.
func Failed(results []Result) bool {
	return lo.SomeBy(results, func(r Result) bool { return r.Outcome == OutcomeFailed })
}
