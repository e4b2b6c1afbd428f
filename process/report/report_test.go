package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"skinscan/config"
	"skinscan/models"
	"skinscan/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{DBDriver: "sqlite", DBDSN: filepath.Join(dir, "r.db"), AutoMigrate: true, UploadBase: filepath.Join(dir, "uploads")}
	db, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	ctx := context.Background()
	require.NoError(t, store.Bootstrap(ctx, db, cfg))

	user := &models.User{Name: "Rae", Email: "rae@example.com", Password: "x", Role: models.RolePatient}
	require.NoError(t, store.NewUserRepo(db).Create(ctx, user))
	images := store.NewImageRepo(db)
	cls := store.NewClassificationRepo(db)
	for i, label := range []string{"nevus", "nevus", "melanoma"} {
		img, err := images.Create(ctx, user.ID, "uploads/img.png")
		require.NoError(t, err, i)
		_, err = cls.Save(ctx, img.ID, models.ImageFeatures{}, label, 0.5)
		require.NoError(t, err)
	}
	_, err = images.Create(ctx, user.ID, "uploads/pending.png")
	require.NoError(t, err)

	var out bytes.Buffer
	month := time.Now().UTC().Format("2006-01")
	require.NoError(t, Run(ctx, db, &out, "rae@example.com", month, true))
	s := out.String()
	assert.Contains(t, s, "classified=3")
	assert.Contains(t, s, "nevus")
	assert.Contains(t, s, "melanoma")
	assert.Contains(t, s, "uploads/pending.png|uploaded|-|")

	assert.Error(t, Run(ctx, db, &out, "nobody@example.com", month, false))
	assert.Error(t, Run(ctx, db, &out, "rae@example.com", "2024/01", false))
}
