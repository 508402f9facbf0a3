package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/cyberscope/cyberscope/internal/core/domain"
	"github.com/cyberscope/cyberscope/internal/core/ports"
)

const defaultListLimit = 20

// SQLiteAdapter implements ports.ThreatStore using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// NewSQLiteAdapter initializes the database and migrates schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	// Auto Migrate
	if err := db.AutoMigrate(&ThreatModel{}, &AnalysisModel{}, &CategoryModel{}, &MetricModel{}); err != nil {
		return nil, err
	}

	// Create Indices for Performance
	db.Exec("CREATE INDEX IF NOT EXISTS idx_threats_modified ON threat_models(modified_date)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_analysis_risk ON analysis_models(risk_score)")

	return &SQLiteAdapter{db: db}, nil
}

// FindByCVE retrieves a threat with its children, or nil when absent.
func (a *SQLiteAdapter) FindByCVE(ctx context.Context, cveID string) (*domain.Threat, error) {
	var model ThreatModel
	err := a.db.WithContext(ctx).
		Preload("Analysis").Preload("Categories").
		First(&model, "cve_id = ?", cveID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomain(model), nil
}

// SaveBatch persists the threats in a single transaction. New rows are
// inserted, existing ones updated in place. An analysis is only ever
// created, never replaced, and category labels are only appended.
func (a *SQLiteAdapter) SaveBatch(ctx context.Context, threats []*domain.Threat) error {
	if len(threats) == 0 {
		return nil
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range threats {
			if err := saveThreat(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveThreat(tx *gorm.DB, t *domain.Threat) error {
	model := toModel(t)
	if model.ID == 0 {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}
		t.ID = model.ID
	} else {
		if err := tx.Omit(clause.Associations).Save(&model).Error; err != nil {
			return err
		}
	}

	if t.Analysis != nil {
		am := toAnalysisModel(t.Analysis, model.ID)
		if am.ID == 0 {
			if err := tx.Create(&am).Error; err != nil {
				return err
			}
			t.Analysis.ID = am.ID
			t.Analysis.ThreatID = model.ID
		} else if err := tx.Save(&am).Error; err != nil {
			return err
		}
	}

	for i := range t.Categories {
		if t.Categories[i].ID != 0 {
			continue // existing labels are immutable
		}
		cm := toCategoryModel(t.Categories[i], model.ID)
		if err := tx.Create(&cm).Error; err != nil {
			return err
		}
		t.Categories[i].ID = cm.ID
		t.Categories[i].ThreatID = model.ID
	}

	return nil
}

// ListThreats returns threats matching the filter ordered by publication
// date, newest first, along with the unlimited match count.
func (a *SQLiteAdapter) ListThreats(ctx context.Context, filter domain.ThreatFilter) ([]*domain.Threat, int64, error) {
	query := a.db.WithContext(ctx).Model(&ThreatModel{})
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Days > 0 {
		start := time.Now().UTC().AddDate(0, 0, -filter.Days)
		query = query.Where("published_date >= ?", start)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var models []ThreatModel
	err := query.Preload("Analysis").Preload("Categories").
		Order("published_date DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return toDomainSlice(models), total, nil
}

// RecentThreats returns the most recently modified threats.
func (a *SQLiteAdapter) RecentThreats(ctx context.Context, limit int) ([]*domain.Threat, error) {
	var models []ThreatModel
	err := a.db.WithContext(ctx).
		Preload("Analysis").Preload("Categories").
		Order("modified_date DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(models), nil
}

// SeverityCounts returns the number of threats per severity label.
func (a *SQLiteAdapter) SeverityCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Severity string
		Count    int64
	}
	err := a.db.WithContext(ctx).Model(&ThreatModel{}).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Severity] = r.Count
	}
	return counts, nil
}

// AnalysisCount returns the number of threats carrying an analysis.
func (a *SQLiteAdapter) AnalysisCount(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&AnalysisModel{}).Count(&count).Error
	return count, err
}

// TopByRiskScore returns threats ordered by their analysis risk score,
// highest first. Threats without an analysis are excluded.
func (a *SQLiteAdapter) TopByRiskScore(ctx context.Context, limit int) ([]*domain.Threat, error) {
	var models []ThreatModel
	err := a.db.WithContext(ctx).
		Joins("JOIN analysis_models ON analysis_models.threat_id = threat_models.id").
		Order("analysis_models.risk_score DESC").
		Limit(limit).
		Preload("Analysis").Preload("Categories").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(models), nil
}

// TrendPoints returns per-day publication counts since the given time.
func (a *SQLiteAdapter) TrendPoints(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	var rows []struct {
		Day   string
		Count int
	}
	err := a.db.WithContext(ctx).Model(&ThreatModel{}).
		Select("date(published_date) AS day, COUNT(*) AS count").
		Where("published_date >= ?", since).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	points := make([]domain.TrendPoint, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse("2006-01-02", r.Day)
		if err != nil {
			continue
		}
		points = append(points, domain.TrendPoint{Date: day, Count: r.Count})
	}
	return points, nil
}

// UpsertMetric writes the snapshot for the named metric, replacing any
// previous payload.
func (a *SQLiteAdapter) UpsertMetric(ctx context.Context, name string, value map[string]any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	model := MetricModel{
		MetricName:  name,
		MetricValue: string(raw),
		UpdatedAt:   time.Now().UTC(),
	}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "metric_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"metric_value", "updated_at"}),
	}).Create(&model).Error
}

// LatestMetric returns the most recently updated metric row, or nil when
// none exists.
func (a *SQLiteAdapter) LatestMetric(ctx context.Context) (*domain.DashboardMetric, error) {
	var model MetricModel
	err := a.db.WithContext(ctx).Order("updated_at DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return metricToDomain(model), nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDomainSlice(models []ThreatModel) []*domain.Threat {
	threats := make([]*domain.Threat, len(models))
	for i, m := range models {
		threats[i] = toDomain(m)
	}
	return threats
}

// Ensure interface compliance
var _ ports.ThreatStore = (*SQLiteAdapter)(nil)
