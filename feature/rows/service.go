package rows

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"bim-reconciler/core/rowstore"
	"bim-reconciler/core/storage"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Service handles schedule row ingest.
type Service struct {
	store   *rowstore.Store
	archive storage.Client
	bucket  string
	logger  *zap.Logger
}

// NewService creates a new rows service. archive may be nil, in which case
// uploaded workbooks are not retained.
func NewService(store *rowstore.Store, archive storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		archive: archive,
		bucket:  bucket,
		logger:  logger,
	}
}

// UploadWorkbook parses an uploaded xlsx export, normalizes its rows, and
// upserts them into the hybrid row store. The raw workbook is archived to
// object storage fire-and-forget so the revision's source files remain
// retrievable.
func (s *Service) UploadWorkbook(ctx context.Context, fileName string, content []byte, scope rowstore.Scope, meta rowstore.UpsertMeta) (rowstore.UpsertReceipt, error) {
	raw, cols, err := ParseWorkbook(bytes.NewReader(content))
	if err != nil {
		return rowstore.UpsertReceipt{}, err
	}

	receipt := s.ingest(ctx, raw, cols, scope, meta)
	s.archiveWorkbook(fileName, content, scope)
	return receipt, nil
}

// UpsertRaw ingests rows that were parsed elsewhere (the spreadsheet-parsing
// collaborator delivers raw rows plus its discovered column mapping).
func (s *Service) UpsertRaw(ctx context.Context, raw []map[string]any, cols rowstore.ColumnMap, scope rowstore.Scope, meta rowstore.UpsertMeta) rowstore.UpsertReceipt {
	return s.ingest(ctx, raw, cols, scope, meta)
}

// Fetch answers a merged point or bulk lookup.
func (s *Service) Fetch(ctx context.Context, q rowstore.FetchQuery) rowstore.FetchResult {
	return s.store.FetchMerged(ctx, q)
}

func (s *Service) ingest(ctx context.Context, raw []map[string]any, cols rowstore.ColumnMap, scope rowstore.Scope, meta rowstore.UpsertMeta) rowstore.UpsertReceipt {
	rows := rowstore.NormalizeRows(raw, cols)

	// Exports without a true GlobalId column still need addressable rows;
	// the synthetic prefix keeps these out of identity matching.
	if cols.GlobalID == "" {
		for i := range rows {
			if rows[i].GlobalID == "" {
				rows[i].GlobalID = rowstore.SyntheticGlobalIDPrefix + uuid.NewString()
			}
		}
	}

	s.logger.Info("ingesting schedule rows",
		zap.String("project_id", scope.ProjectID),
		zap.String("model_version", scope.ModelVersion),
		zap.String("source_mode", meta.SourceMode),
		zap.Int("row_count", len(rows)),
		zap.Bool("allow_durable", meta.AllowDurable),
	)

	return s.store.Upsert(ctx, rows, scope, meta)
}

// archiveWorkbook stores the original upload for audit. Failures are logged
// and otherwise ignored; ingest already succeeded.
func (s *Service) archiveWorkbook(fileName string, content []byte, scope rowstore.Scope) {
	if s.archive == nil || fileName == "" {
		return
	}
	objectName := path.Join("uploads", scope.ProjectID, scope.ModelVersion, fileName)
	go func() {
		_, err := s.archive.PutObject(context.Background(), s.bucket, objectName,
			bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
				ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			})
		if err != nil {
			s.logger.Warn("workbook archive failed",
				zap.String("object", objectName),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("workbook archived", zap.String("object", objectName))
	}()
}

func validateScope(scope rowstore.Scope) error {
	if scope.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}
