package rowstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Persistence outcomes for Upsert.
const (
	PersistenceRuntime = "runtime"
	PersistenceHybrid  = "hybrid"
)

// Source provenance values for FetchMerged. SourceDurable keeps the label the
// dashboard contracts expect for the hosted relational store.
const (
	SourceNone    = "none"
	SourceDurable = "supabase"
	SourceRuntime = "runtime"
	SourceHybrid  = "hybrid"
)

// Config holds configuration for the hybrid row store.
type Config struct {
	// MaxRevisions caps the number of retained in-process revisions.
	MaxRevisions int `mapstructure:"max_revisions" default:"8"`
	// DurableBatchSize is the row count per durable upsert/select batch.
	DurableBatchSize int `mapstructure:"durable_batch_size" default:"500"`
	// DurableTimeoutSeconds bounds each durable batch call.
	DurableTimeoutSeconds int `mapstructure:"durable_timeout_seconds" default:"10"`
}

func (c Config) maxRevisions() int {
	if c.MaxRevisions <= 0 {
		return 8
	}
	return c.MaxRevisions
}

func (c Config) batchSize() int {
	if c.DurableBatchSize <= 0 {
		return 500
	}
	return c.DurableBatchSize
}

func (c Config) durableTimeout() time.Duration {
	if c.DurableTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.DurableTimeoutSeconds) * time.Second
}

// Store is the hybrid row store: a bounded, indexed in-process cache of
// schedule rows per (project, model version), write-through to an optional
// durable collaborator. It is an injected component with no package-level
// state; Shutdown is a no-op since the cache is memory-only.
type Store struct {
	mu        sync.RWMutex
	revisions map[string]*Revision

	durable Durable
	logger  *zap.Logger
	cfg     Config
}

// New allocates a Store. durable may be nil, in which case every operation
// runs runtime-only.
func New(cfg Config, durable Durable, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		revisions: make(map[string]*Revision),
		durable:   durable,
		logger:    logger,
		cfg:       cfg,
	}
}

// UpsertMeta carries upload provenance.
type UpsertMeta struct {
	// SourceFile is the originating file name, retained for audit.
	SourceFile string `json:"sourceFile,omitempty"`
	// SourceMode labels the import path that produced the rows. Opaque.
	SourceMode string `json:"sourceMode,omitempty"`
	// AllowDurable enables write-through to the durable collaborator.
	AllowDurable bool `json:"allowDurable"`
}

// UpsertReceipt reports what an Upsert call accomplished.
type UpsertReceipt struct {
	InsertedCount        int      `json:"insertedCount"`
	DurableInsertedCount int      `json:"durableInsertedCount"`
	CacheRowCount        int      `json:"cacheRowCount"`
	Persistence          string   `json:"persistence"`
	Errors               []string `json:"errors"`
}

// Upsert merges rows into the in-process revision for scope and, when
// allowed and a durable collaborator is configured, writes them through in
// fixed-size batches. A failed batch is recorded and does not abort the
// remaining batches or the in-memory merge. Upsert never fails: durable
// trouble degrades the receipt, nothing more.
func (s *Store) Upsert(ctx context.Context, rows []ExternalRow, scope Scope, meta UpsertMeta) UpsertReceipt {
	// Collapse duplicated identity keys up front. The cache merge dedupes on
	// its own, but a durable batch must never bind the same conflict key
	// twice: Postgres rejects a multi-row ON CONFLICT DO UPDATE whose VALUES
	// list repeats a key.
	rows = DedupeRows(rows)

	receipt := UpsertReceipt{
		InsertedCount: len(rows),
		Persistence:   PersistenceRuntime,
		Errors:        []string{},
	}

	s.mu.Lock()
	rev, ok := s.revisions[scope.key()]
	if !ok {
		rev = newRevision(scope)
		s.revisions[scope.key()] = rev
	}
	rev.merge(rows, meta, time.Now())
	receipt.CacheRowCount = len(rev.Rows)
	s.evictLocked()
	s.mu.Unlock()

	if meta.AllowDurable && s.durable != nil {
		batchSize := s.cfg.batchSize()
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			batch := rows[start:end]

			bctx, cancel := context.WithTimeout(ctx, s.cfg.durableTimeout())
			err := s.durable.UpsertRows(bctx, scope, batch, meta)
			cancel()

			if err != nil {
				receipt.Errors = append(receipt.Errors, fmt.Sprintf("durable batch %d-%d: %v", start, end, err))
				s.warnDurable("durable upsert batch failed", scope, err)
				continue
			}
			receipt.DurableInsertedCount += len(batch)
		}
		if receipt.DurableInsertedCount > 0 {
			receipt.Persistence = PersistenceHybrid
		}
	}

	return receipt
}

// FetchQuery selects rows for a scope. Non-empty GlobalIDs/ElementIDs switch
// the fetch into filtered mode; both empty means full scan.
type FetchQuery struct {
	Scope      Scope
	GlobalIDs  []string
	ElementIDs []int64
	Limit      int
}

// Unresolved lists requested identifiers found in neither backend.
type Unresolved struct {
	GlobalIDs  []string `json:"globalIds"`
	ElementIDs []int64  `json:"elementIds"`
}

// FetchResult is the merged read answer with provenance metadata.
type FetchResult struct {
	Rows         []ExternalRow `json:"rows"`
	Unresolved   Unresolved    `json:"unresolved"`
	Source       string        `json:"source"`
	RevisionMeta *RevisionMeta `json:"revisionMeta,omitempty"`
	DurableError string        `json:"durableError,omitempty"`
}

// FetchMerged answers a point or bulk lookup by combining the durable store
// and the in-process cache. In filtered mode the durable store is consulted
// first and the cache covers only the unresolved remainder. Durable errors
// are surfaced as metadata, never returned; the in-memory view always
// answers.
func (s *Store) FetchMerged(ctx context.Context, q FetchQuery) FetchResult {
	res := FetchResult{
		Rows:       []ExternalRow{},
		Unresolved: Unresolved{GlobalIDs: []string{}, ElementIDs: []int64{}},
		Source:     SourceNone,
	}

	filtered := len(q.GlobalIDs) > 0 || len(q.ElementIDs) > 0

	var durableRows, cacheRows []ExternalRow
	var durableErr error

	if filtered {
		durableRows, durableErr = s.fetchDurableFiltered(ctx, q)

		foundGlobals := make(map[string]bool)
		foundElements := make(map[int64]bool)
		for _, r := range durableRows {
			if r.GlobalID != "" {
				foundGlobals[r.GlobalID] = true
			}
			if r.LegacyElementID != nil {
				foundElements[*r.LegacyElementID] = true
			}
		}

		s.mu.RLock()
		rev := s.selectRevisionLocked(q.Scope)
		if rev != nil {
			res.RevisionMeta = rev.meta()
			// The cache covers only the remainder the durable store missed.
			for _, id := range q.GlobalIDs {
				if !foundGlobals[id] {
					for _, row := range rev.lookupGlobalID(id) {
						cacheRows = append(cacheRows, row)
					}
				}
			}
			for _, id := range q.ElementIDs {
				if !foundElements[id] {
					for _, row := range rev.lookupElementID(id) {
						cacheRows = append(cacheRows, row)
					}
				}
			}
		}
		s.mu.RUnlock()

		for _, r := range cacheRows {
			if r.GlobalID != "" {
				foundGlobals[r.GlobalID] = true
			}
			if r.LegacyElementID != nil {
				foundElements[*r.LegacyElementID] = true
			}
		}
		for _, id := range q.GlobalIDs {
			if !foundGlobals[id] {
				res.Unresolved.GlobalIDs = append(res.Unresolved.GlobalIDs, id)
			}
		}
		for _, id := range q.ElementIDs {
			if !foundElements[id] {
				res.Unresolved.ElementIDs = append(res.Unresolved.ElementIDs, id)
			}
		}
	} else {
		if s.durable != nil {
			bctx, cancel := context.WithTimeout(ctx, s.cfg.durableTimeout())
			durableRows, durableErr = s.durable.SelectAll(bctx, q.Scope, q.Limit)
			cancel()
			if durableErr != nil {
				durableRows = nil
			}
		}

		s.mu.RLock()
		rev := s.selectRevisionLocked(q.Scope)
		if rev != nil {
			res.RevisionMeta = rev.meta()
			cacheRows = append(cacheRows, rev.Rows...)
		}
		s.mu.RUnlock()
	}

	if durableErr != nil {
		res.DurableError = durableErr.Error()
		s.warnDurable("durable fetch degraded to runtime", q.Scope, durableErr)
	}

	merged := DedupeRows(append(durableRows, cacheRows...))
	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	res.Rows = merged
	res.Source = sourceLabel(len(durableRows) > 0, len(cacheRows) > 0)
	return res
}

// RevisionCount reports how many revisions the cache currently retains.
func (s *Store) RevisionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revisions)
}

// Shutdown releases the store. The cache is memory-only, so this is a no-op
// beyond dropping the revision table.
func (s *Store) Shutdown() {
	s.mu.Lock()
	s.revisions = make(map[string]*Revision)
	s.mu.Unlock()
}

// fetchDurableFiltered runs the batched IN lookups, accumulating what it can.
// The first error stops further durable calls for the request.
func (s *Store) fetchDurableFiltered(ctx context.Context, q FetchQuery) ([]ExternalRow, error) {
	if s.durable == nil {
		return nil, nil
	}
	var rows []ExternalRow
	batchSize := s.cfg.batchSize()

	for start := 0; start < len(q.GlobalIDs); start += batchSize {
		end := start + batchSize
		if end > len(q.GlobalIDs) {
			end = len(q.GlobalIDs)
		}
		bctx, cancel := context.WithTimeout(ctx, s.cfg.durableTimeout())
		got, err := s.durable.SelectByGlobalIDs(bctx, q.Scope, q.GlobalIDs[start:end])
		cancel()
		if err != nil {
			return rows, err
		}
		rows = append(rows, got...)
	}

	for start := 0; start < len(q.ElementIDs); start += batchSize {
		end := start + batchSize
		if end > len(q.ElementIDs) {
			end = len(q.ElementIDs)
		}
		bctx, cancel := context.WithTimeout(ctx, s.cfg.durableTimeout())
		got, err := s.durable.SelectByElementIDs(bctx, q.Scope, q.ElementIDs[start:end])
		cancel()
		if err != nil {
			return rows, err
		}
		rows = append(rows, got...)
	}

	return rows, nil
}

// selectRevisionLocked picks the cache revision for a scope: exact match when
// a model version is given, otherwise the most recently updated revision for
// the project. Caller holds at least a read lock.
func (s *Store) selectRevisionLocked(scope Scope) *Revision {
	if scope.ModelVersion != "" {
		return s.revisions[scope.key()]
	}
	var latest *Revision
	for _, rev := range s.revisions {
		if rev.Scope.ProjectID != scope.ProjectID {
			continue
		}
		if latest == nil || rev.UpdatedAt.After(latest.UpdatedAt) {
			latest = rev
		}
	}
	return latest
}

// evictLocked drops the oldest-updated revisions until the count is back
// under the cap. Caller holds the write lock.
func (s *Store) evictLocked() {
	max := s.cfg.maxRevisions()
	for len(s.revisions) > max {
		var oldestKey string
		var oldest time.Time
		for key, rev := range s.revisions {
			if oldestKey == "" || rev.UpdatedAt.Before(oldest) {
				oldestKey = key
				oldest = rev.UpdatedAt
			}
		}
		evicted := s.revisions[oldestKey]
		delete(s.revisions, oldestKey)
		s.logger.Info("evicted revision",
			zap.String("project_id", evicted.Scope.ProjectID),
			zap.String("model_version", evicted.Scope.ModelVersion),
			zap.Int("row_count", len(evicted.Rows)),
			zap.Time("updated_at", evicted.UpdatedAt),
		)
	}
}

func (s *Store) warnDurable(msg string, scope Scope, err error) {
	if IsMissingRelation(err) {
		msg = msg + " (relation missing)"
	}
	s.logger.Warn(msg,
		zap.String("project_id", scope.ProjectID),
		zap.String("model_version", scope.ModelVersion),
		zap.Error(err),
	)
}

func sourceLabel(durable, cache bool) string {
	switch {
	case durable && cache:
		return SourceHybrid
	case durable:
		return SourceDurable
	case cache:
		return SourceRuntime
	default:
		return SourceNone
	}
}
