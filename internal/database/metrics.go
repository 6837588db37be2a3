package database

import (
	"time"

	"blogshive/internal/observability"

	"gorm.io/gorm"
)

const metricsStartKey = "blogshive:query_start"

// MetricsPlugin records per-statement latency into observability.DatabaseQueryLatency.
type MetricsPlugin struct{}

func (*MetricsPlugin) Name() string { return "blogshive:metrics" }

func (p *MetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(name string, before, after func(*gorm.DB)) error
	}{
		{"create", func(name string, before, after func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register(name+":before", before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register(name+":after", after)
		}},
		{"query", func(name string, before, after func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register(name+":before", before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register(name+":after", after)
		}},
		{"update", func(name string, before, after func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register(name+":before", before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register(name+":after", after)
		}},
		{"delete", func(name string, before, after func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register(name+":before", before); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register(name+":after", after)
		}},
		{"raw", func(name string, before, after func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register(name+":before", before); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register(name+":after", after)
		}},
	}

	for _, h := range hooks {
		op := h.op
		if err := h.register("metrics:"+op, startTimer, func(tx *gorm.DB) { observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(metricsStartKey, time.Now())
}

func observe(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(metricsStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	observability.DatabaseQueryLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
}
