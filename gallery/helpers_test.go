package gallery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront-backend/database"
	"storefront-backend/lock"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db       *gorm.DB
	store    *storage.Local
	locker   *lock.Memory
	promoter *Promoter
	product  models.Product
}

func freshDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := freshDB(t)
	store, err := storage.NewLocal(t.TempDir(), "/upload")
	require.NoError(t, err)

	product := models.Product{Title: "T-Shirt", SKU: "TSHIRT-001", Price: decimal.NewFromInt(20),
		CategoryID: 1, BrandID: 1, Status: models.StatusActive, IsFeatured: models.FeaturedNo}
	require.NoError(t, db.Create(&product).Error)

	locker := lock.NewMemory()
	return &fixture{
		db:       db,
		store:    store,
		locker:   locker,
		promoter: NewPromoter(db, store, locker, logger.Nop(), nil),
		product:  product,
	}
}

// addTemp creates a temp image row with the given id and, when withFiles is
// set, the image and thumbnail files.
func (f *fixture) addTemp(t *testing.T, id uint, name string, withFiles bool) models.TempImage {
	t.Helper()
	temp := models.TempImage{ID: id, Name: name}
	require.NoError(t, f.db.Create(&temp).Error)
	if withFiles {
		f.writeTempFile(t, name)
		f.writeTempFile(t, models.ThumbName(name))
	}
	return temp
}

func (f *fixture) writeTempFile(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), storage.TempPath(name), strings.NewReader("img:"+name), "image/png"))
}

func (f *fixture) fileExists(t *testing.T, logical string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(f.store.Root, filepath.FromSlash(logical)))
	return err == nil
}

func (f *fixture) countImages(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.ProductImage{}).Count(&n).Error)
	return n
}

func (f *fixture) tempExists(t *testing.T, id uint) bool {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.TempImage{}).Where("id = ?", id).Count(&n).Error)
	return n > 0
}

// flakyStore fails Move for chosen source paths.
type flakyStore struct {
	*storage.Local
	failMoveFrom map[string]error
}

func (s *flakyStore) Move(ctx context.Context, src, dst string) error {
	if err, ok := s.failMoveFrom[src]; ok {
		return err
	}
	return s.Local.Move(ctx, src, dst)
}
