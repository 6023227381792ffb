package rowstore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Durable is the relational collaborator contract: batched idempotent upsert
// keyed by identity key, and batched filtered selects. Implementations may be
// slow, unreachable, or missing their relation entirely; the Store treats
// every failure identically as "durable unavailable" and continues from its
// in-process cache.
type Durable interface {
	UpsertRows(ctx context.Context, scope Scope, rows []ExternalRow, meta UpsertMeta) error
	SelectByGlobalIDs(ctx context.Context, scope Scope, ids []string) ([]ExternalRow, error)
	SelectByElementIDs(ctx context.Context, scope Scope, ids []int64) ([]ExternalRow, error)
	SelectAll(ctx context.Context, scope Scope, limit int) ([]ExternalRow, error)
}

// externalRowRecord is the durable representation of an ExternalRow.
type externalRowRecord struct {
	ProjectID       string            `gorm:"column:project_id;primaryKey"`
	ModelVersion    string            `gorm:"column:model_version;primaryKey"`
	IdentityKey     string            `gorm:"column:identity_key;primaryKey"`
	GlobalID        string            `gorm:"column:global_id;index"`
	LegacyElementID *int64            `gorm:"column:legacy_element_id;index"`
	UniqueRowID     string            `gorm:"column:unique_row_id"`
	TypeGUID        string            `gorm:"column:type_guid"`
	Category        string            `gorm:"column:category"`
	ElementName     string            `gorm:"column:element_name"`
	Extra           map[string]string `gorm:"column:extra;serializer:json"`
	SourceFile      string            `gorm:"column:source_file"`
	SourceMode      string            `gorm:"column:source_mode"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}

func (externalRowRecord) TableName() string {
	return "external_rows"
}

func (rec externalRowRecord) toRow() ExternalRow {
	return ExternalRow{
		GlobalID:        rec.GlobalID,
		LegacyElementID: rec.LegacyElementID,
		UniqueRowID:     rec.UniqueRowID,
		TypeGUID:        rec.TypeGUID,
		Category:        rec.Category,
		ElementName:     rec.ElementName,
		Extra:           rec.Extra,
	}
}

// GormDurable implements Durable over a GORM Postgres connection.
type GormDurable struct {
	db *gorm.DB
}

// NewGormDurable wraps an established GORM connection. A nil db yields a nil
// Durable, which the Store interprets as "no durable collaborator".
func NewGormDurable(db *gorm.DB) Durable {
	if db == nil {
		return nil
	}
	return &GormDurable{db: db}
}

// UpsertRows writes one batch. The upsert is idempotent per identity key
// within a scope.
func (g *GormDurable) UpsertRows(ctx context.Context, scope Scope, rows []ExternalRow, meta UpsertMeta) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()
	records := make([]externalRowRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, externalRowRecord{
			ProjectID:       scope.ProjectID,
			ModelVersion:    scope.ModelVersion,
			IdentityKey:     r.IdentityKey(),
			GlobalID:        r.GlobalID,
			LegacyElementID: r.LegacyElementID,
			UniqueRowID:     r.UniqueRowID,
			TypeGUID:        r.TypeGUID,
			Category:        r.Category,
			ElementName:     r.ElementName,
			Extra:           r.Extra,
			SourceFile:      meta.SourceFile,
			SourceMode:      meta.SourceMode,
			UpdatedAt:       now,
		})
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "project_id"}, {Name: "model_version"}, {Name: "identity_key"},
		},
		UpdateAll: true,
	}).Create(&records).Error
}

// SelectByGlobalIDs performs a batched IN lookup on global_id.
func (g *GormDurable) SelectByGlobalIDs(ctx context.Context, scope Scope, ids []string) ([]ExternalRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []externalRowRecord
	if err := g.scoped(ctx, scope).Where("global_id IN ?", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToRows(records), nil
}

// SelectByElementIDs performs a batched IN lookup on legacy_element_id.
func (g *GormDurable) SelectByElementIDs(ctx context.Context, scope Scope, ids []int64) ([]ExternalRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []externalRowRecord
	if err := g.scoped(ctx, scope).Where("legacy_element_id IN ?", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToRows(records), nil
}

// SelectAll reads every row for the scope, bounded by limit when positive.
func (g *GormDurable) SelectAll(ctx context.Context, scope Scope, limit int) ([]ExternalRow, error) {
	var records []externalRowRecord
	tx := g.scoped(ctx, scope).Order("identity_key")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToRows(records), nil
}

func (g *GormDurable) scoped(ctx context.Context, scope Scope) *gorm.DB {
	tx := g.db.WithContext(ctx).Model(&externalRowRecord{}).Where("project_id = ?", scope.ProjectID)
	if scope.ModelVersion != "" {
		tx = tx.Where("model_version = ?", scope.ModelVersion)
	}
	return tx
}

func recordsToRows(records []externalRowRecord) []ExternalRow {
	rows := make([]ExternalRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.toRow())
	}
	return rows
}

// IsMissingRelation reports whether the error indicates the external_rows
// relation does not exist (SQLSTATE 42P01). The Store treats this the same
// as any other durable failure; the distinction only sharpens log messages.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "42P01") || strings.Contains(msg, "does not exist")
}
