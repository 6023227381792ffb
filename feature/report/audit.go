package report

import (
	"context"
	"time"

	"bim-reconciler/core/match"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// matchReportRecord is the persisted audit summary of one report run:
// counts and rates only, never row payloads.
type matchReportRecord struct {
	ID                     uint           `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID              string         `gorm:"column:project_id;index"`
	ModelVersion           string         `gorm:"column:model_version"`
	TotalElements          int            `gorm:"column:total_elements"`
	TotalRows              int            `gorm:"column:total_rows"`
	TotalMatched           int            `gorm:"column:total_matched"`
	MatchRate              float64        `gorm:"column:match_rate"`
	AmbiguousCount         int            `gorm:"column:ambiguous_count"`
	MissingInExternalCount int            `gorm:"column:missing_in_external_count"`
	MissingInModelCount    int            `gorm:"column:missing_in_model_count"`
	MatchedByKey           map[string]int `gorm:"column:matched_by_key;serializer:json"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (matchReportRecord) TableName() string {
	return "match_reports"
}

// persistSummary writes the trimmed report summary for historical tracking.
// It is fire-and-forget: a persistence failure never affects the returned
// report, it only produces a warning.
func persistSummary(db *gorm.DB, logger *zap.Logger, projectID, modelVersion string, summary match.Summary) {
	if db == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rec := matchReportRecord{
			ProjectID:              projectID,
			ModelVersion:           modelVersion,
			TotalElements:          summary.TotalElements,
			TotalRows:              summary.TotalRows,
			TotalMatched:           summary.TotalMatched,
			MatchRate:              summary.MatchRate,
			AmbiguousCount:         summary.AmbiguousCount,
			MissingInExternalCount: summary.MissingInExternalCount,
			MissingInModelCount:    summary.MissingInModelCount,
			MatchedByKey:           summary.MatchedByKey,
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			logger.Warn("match report audit persist failed",
				zap.String("project_id", projectID),
				zap.String("model_version", modelVersion),
				zap.Error(err),
			)
		}
	}()
}
