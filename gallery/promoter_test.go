package gallery

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPromoteMovesImageAndSkipsMissingID(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 7, "abc.png", true)

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7, 9})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, OutcomePromoted, results[0].Outcome)
	assert.Equal(t, uint(7), results[0].TempImageID)
	assert.Equal(t, OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, uint(9), results[1].TempImageID)

	var images []models.ProductImage
	require.NoError(t, f.db.Where("product_id = ?", f.product.ID).Find(&images).Error)
	require.Len(t, images, 1)
	assert.True(t, strings.HasSuffix(images[0].Image, ".jpg"))
	assert.Equal(t, models.ImageStateActive, images[0].State)
	assert.Nil(t, images[0].TempImageID)

	assert.False(t, f.tempExists(t, 7))
	assert.False(t, f.fileExists(t, "temp/abc.png"))
	assert.False(t, f.fileExists(t, "temp/thumb_abc.png"))
	assert.True(t, f.fileExists(t, storage.ProductPath(images[0].Image)))
	assert.True(t, f.fileExists(t, storage.ProductPath("thumb_"+images[0].Image)))

	require.NotNil(t, results[0].Image)
	assert.Equal(t, "/upload/products/"+images[0].Image, results[0].Image.ImageURL)
	assert.Equal(t, "/upload/products/thumb_"+images[0].Image, results[0].Image.ThumbURL)
}

func TestPromoteCreatesMissingGalleryDir(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 1, "first.png", true)
	require.False(t, f.fileExists(t, storage.ProductDir))

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, results[0].Outcome)
	assert.True(t, f.fileExists(t, storage.ProductDir))
}

func TestPromoteSameIDTwiceDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 7, "abc.png", true)

	_, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.countImages(t))

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, int64(1), f.countImages(t))
}

func TestPromoteDuplicateIDInOneCall(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 7, "abc.png", true)

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7, 7})
	require.NoError(t, err)
	assert.Equal(t, []Outcome{OutcomePromoted, OutcomeSkipped}, []Outcome{results[0].Outcome, results[1].Outcome})
	assert.Equal(t, int64(1), f.countImages(t))
}

func TestPromoteEmptyList(t *testing.T) {
	f := newFixture(t)

	results, err := f.promoter.Promote(context.Background(), f.product.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int64(0), f.countImages(t))
	assert.False(t, f.fileExists(t, storage.ProductDir))
}

func TestPromoteMissingFileDiscardsPendingRow(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 3, "ghost.png", false)

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{3})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, int64(0), f.countImages(t))
	assert.True(t, f.tempExists(t, 3))
}

func TestPromoteThumbnailFailureRestoresImage(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 4, "nothumb.png", false)
	f.writeTempFile(t, "nothumb.png")

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "move thumbnail")
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	assert.True(t, f.fileExists(t, "temp/nothumb.png"))
	assert.Equal(t, int64(0), f.countImages(t))
	assert.True(t, f.tempExists(t, 4))
}

func TestPromoteThumbnailFailureWithFailedRestoreKeepsPendingRow(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 4, "abc.png", true)
	f.promoter.newName = func() string { return "fixed.jpg" }
	f.promoter.Store = &flakyStore{Local: f.store, failMoveFrom: map[string]error{
		"temp/thumb_abc.png":  errors.New("disk full"),
		"products/fixed.jpg": errors.New("read-only"),
	}}

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore image")
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var img models.ProductImage
	require.NoError(t, f.db.First(&img).Error)
	assert.Equal(t, models.ImageStatePending, img.State)
	assert.True(t, f.fileExists(t, "products/fixed.jpg"))
}

func TestSweepMovesThumbnailLeftBehindByFailedRestore(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 4, "abc.png", true)
	f.promoter.newName = func() string { return "fixed.jpg" }
	f.promoter.Store = &flakyStore{Local: f.store, failMoveFrom: map[string]error{
		"temp/thumb_abc.png": errors.New("disk full"),
		"products/fixed.jpg": errors.New("read-only"),
	}}

	_, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{4})
	require.Error(t, err)
	require.True(t, f.fileExists(t, "temp/thumb_abc.png"))

	rec := NewReconciler(f.db, f.store, f.locker, logger.Nop(), nil, 0, time.Hour)
	report, err := rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PendingActivated)

	var img models.ProductImage
	require.NoError(t, f.db.First(&img).Error)
	assert.Equal(t, models.ImageStateActive, img.State)
	assert.True(t, f.fileExists(t, "products/fixed.jpg"))
	assert.True(t, f.fileExists(t, "products/thumb_fixed.jpg"))
	assert.False(t, f.fileExists(t, "temp/thumb_abc.png"))
	assert.False(t, f.tempExists(t, 4))
}

func TestPromoteContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 1, "broken.png", false)
	f.addTemp(t, 2, "good.png", true)

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{1, 2})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, OutcomePromoted, results[1].Outcome)
	assert.True(t, Failed(results))
	assert.Len(t, Promoted(results), 1)
	assert.Equal(t, int64(1), f.countImages(t))
}

func TestPromoteBusyTempImage(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 7, "abc.png", true)
	f.addTemp(t, 8, "def.png", true)

	lease, err := f.locker.Acquire(context.Background(), LockKey(7))
	require.NoError(t, err)
	defer lease.Release(context.Background())

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7, 8})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTempImageBusy)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, OutcomePromoted, results[1].Outcome)
	assert.True(t, f.tempExists(t, 7))
	assert.True(t, f.fileExists(t, "temp/abc.png"))
}

func TestPromoteCommitFailureLeavesPendingRowForSweep(t *testing.T) {
	f := newFixture(t)
	f.addTemp(t, 7, "abc.png", true)

	var failDeletes atomic.Bool
	failDeletes.Store(true)
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:fail_temp_delete", func(tx *gorm.DB) {
		if failDeletes.Load() && tx.Statement.Table == "temp_images" {
			tx.AddError(errors.New("connection reset"))
		}
	}))

	results, err := f.promoter.Promote(context.Background(), f.product.ID, []uint{7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit gallery image")
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var img models.ProductImage
	require.NoError(t, f.db.First(&img).Error)
	assert.Equal(t, models.ImageStatePending, img.State)
	require.NotNil(t, img.TempImageID)
	assert.True(t, f.fileExists(t, storage.ProductPath(img.Image)))

	failDeletes.Store(false)
	rec := NewReconciler(f.db, f.store, f.locker, logger.Nop(), nil, 0, time.Hour)
	report, err := rec.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PendingActivated)

	require.NoError(t, f.db.First(&img, img.ID).Error)
	assert.Equal(t, models.ImageStateActive, img.State)
	assert.False(t, f.tempExists(t, 7))
}
