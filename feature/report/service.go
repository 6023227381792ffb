package report

import (
	"context"

	"bim-reconciler/core/match"
	"bim-reconciler/core/rowstore"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Service builds match reports from the merged row view.
type Service struct {
	store   *rowstore.Store
	db      *gorm.DB
	logger  *zap.Logger
	options match.Options

	fetches singleflight.Group
}

// NewService creates a new report service. db may be nil; audit summaries are
// then skipped.
func NewService(store *rowstore.Store, db *gorm.DB, logger *zap.Logger, options match.Options) *Service {
	return &Service{
		store:   store,
		db:      db,
		logger:  logger,
		options: options,
	}
}

// ReportOutcome bundles the match report with the provenance of the row view
// it was computed from.
type ReportOutcome struct {
	Report       *match.MatchReport     `json:"report"`
	Source       string                 `json:"source"`
	RevisionMeta *rowstore.RevisionMeta `json:"revisionMeta,omitempty"`
	DurableError string                 `json:"durableError,omitempty"`
}

// BuildReport fetches the merged rows for the scope and reconciles the given
// geometry elements against them. Thresholds fall back to the configured
// defaults when the caller passes zeroes. The audit summary is persisted
// fire-and-forget.
func (s *Service) BuildReport(ctx context.Context, scope rowstore.Scope, elements []match.ModelElement, opts match.Options) ReportOutcome {
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = s.options.MatchThreshold
	}
	if opts.AmbiguousThreshold <= 0 {
		opts.AmbiguousThreshold = s.options.AmbiguousThreshold
	}

	fetch := s.fetchRows(ctx, scope)
	report := match.BuildMatchReport(elements, fetch.Rows, opts)

	s.logger.Info("match report built",
		zap.String("project_id", scope.ProjectID),
		zap.String("model_version", scope.ModelVersion),
		zap.String("row_source", fetch.Source),
		zap.Int("total_elements", report.TotalElements),
		zap.Int("total_rows", report.TotalRows),
		zap.Int("total_matched", report.TotalMatched),
		zap.Float64("match_rate", report.MatchRate),
	)

	persistSummary(s.db, s.logger, scope.ProjectID, scope.ModelVersion, report.Summary())

	return ReportOutcome{
		Report:       report,
		Source:       fetch.Source,
		RevisionMeta: fetch.RevisionMeta,
		DurableError: fetch.DurableError,
	}
}

// fetchRows performs the full-scan merged read, deduplicating concurrent
// identical scans through singleflight so simultaneous report requests for
// one scope hit the durable store once.
func (s *Service) fetchRows(ctx context.Context, scope rowstore.Scope) rowstore.FetchResult {
	key := scope.ProjectID + "::" + scope.ModelVersion
	v, _, _ := s.fetches.Do(key, func() (any, error) {
		return s.store.FetchMerged(ctx, rowstore.FetchQuery{Scope: scope}), nil
	})
	return v.(rowstore.FetchResult)
}
