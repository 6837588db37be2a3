package database

import (
	"path/filepath"
	"testing"

	"blogshive/internal/config"
	"blogshive/internal/models"
	"blogshive/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	d, err := dialector(&config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialector(&config.Config{DBDriver: "sqlite", DBSQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestConnect_SQLiteMigratesAllModels(t *testing.T) {
	cfg := &config.Config{
		DBDriver:     "sqlite",
		DBSQLitePath: filepath.Join(t.TempDir(), "blogshive.db"),
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "%T table exists", m)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Relationship{}, "idx_relationship_pair"))
}

type metricsProbe struct {
	ID   uint
	Name string
}

func TestMetricsPlugin_ObservesQueries(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Use(&MetricsPlugin{}))
	require.NoError(t, db.AutoMigrate(&metricsProbe{}))

	require.NoError(t, db.Create(&metricsProbe{Name: "a"}).Error)
	var p metricsProbe
	require.NoError(t, db.First(&p).Error)

	assert.Equal(t, uint64(1), sampleCount(t, "create", "metrics_probes"))
	assert.Equal(t, uint64(1), sampleCount(t, "query", "metrics_probes"))
}

func sampleCount(t *testing.T, op, table string) uint64 {
	t.Helper()
	h, ok := observability.DatabaseQueryLatency.WithLabelValues(op, table).(prometheus.Histogram)
	require.True(t, ok)
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}
