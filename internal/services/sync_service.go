package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/cache"
	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

var (
	// ErrSyncInProgress is returned when a run is already in flight
	// for the requested source.
	ErrSyncInProgress = errors.New("sync already in progress for this source")
	// ErrUnknownSource is returned for a source with no registered adapter.
	ErrUnknownSource = errors.New("unknown sync source")
	// ErrRunNotActive is returned when cancelling a run that is not in flight.
	ErrRunNotActive = errors.New("sync run is not active")
)

// SyncResult is the structured outcome of one reconciliation run.
type SyncResult struct {
	RunID      uuid.UUID         `json:"runId"`
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Processed  int               `json:"processed"`
	Created    int               `json:"created"`
	Updated    int               `json:"updated"`
	Skipped    int               `json:"skipped"`
	ErrorCount int               `json:"errorCount"`
	Conflicts  int               `json:"conflicts"`
	Errors     []models.RowError `json:"errors,omitempty"`
}

// SyncService orchestrates reconciliation runs: fetch, normalize,
// group, diff against the canonical catalog, apply, audit.
type SyncService struct {
	products repository.ProductRepositoryInterface
	runs     repository.SyncRunRepositoryInterface
	sources  map[models.SourceType]clients.SourceClient
	grouper  *Grouper
	cache    cache.Store
	cacheTTL time.Duration
	timeout  time.Duration
	log      *logrus.Entry

	mu     sync.Mutex
	active map[models.SourceType]activeRun
}

type activeRun struct {
	runID  uuid.UUID
	cancel context.CancelFunc
}

// NewSyncService creates a sync service. One adapter per source type;
// the cache store is shared with the search engine.
func NewSyncService(
	products repository.ProductRepositoryInterface,
	runs repository.SyncRunRepositoryInterface,
	sources []clients.SourceClient,
	store cache.Store,
	cacheTTL, timeout time.Duration,
) *SyncService {
	bySource := make(map[models.SourceType]clients.SourceClient, len(sources))
	for _, source := range sources {
		bySource[source.Source()] = source
	}
	return &SyncService{
		products: products,
		runs:     runs,
		sources:  bySource,
		grouper:  NewGrouper(),
		cache:    store,
		cacheTTL: cacheTTL,
		timeout:  timeout,
		log:      logrus.WithField("component", "sync_service"),
		active:   make(map[models.SourceType]activeRun),
	}
}

// StartRun launches a reconciliation run in the background and
// returns its run ID. At most one run per source is in flight.
func (s *SyncService) StartRun(source models.SourceType, syncType models.SyncType, trigger models.TriggerType) (uuid.UUID, error) {
	if _, ok := s.sources[source]; !ok {
		return uuid.Nil, ErrUnknownSource
	}

	run := &models.SyncRun{
		Source:      source,
		SyncType:    syncType,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
		TriggeredBy: trigger,
	}

	s.mu.Lock()
	if _, busy := s.active[source]; busy {
		s.mu.Unlock()
		return uuid.Nil, ErrSyncInProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	if err := s.runs.Create(ctx, run); err != nil {
		s.mu.Unlock()
		cancel()
		return uuid.Nil, fmt.Errorf("create sync run: %w", err)
	}
	s.active[source] = activeRun{runID: run.ID, cancel: cancel}
	s.mu.Unlock()

	go func() {
		defer cancel()
		defer s.release(source)
		s.execute(ctx, run)
	}()

	return run.ID, nil
}

// RunSync executes a reconciliation run synchronously and returns its
// result. Fetch failure aborts before any catalog mutation.
func (s *SyncService) RunSync(ctx context.Context, source models.SourceType, syncType models.SyncType, trigger models.TriggerType) (*SyncResult, error) {
	if _, ok := s.sources[source]; !ok {
		return nil, ErrUnknownSource
	}

	run := &models.SyncRun{
		Source:      source,
		SyncType:    syncType,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
		TriggeredBy: trigger,
	}

	s.mu.Lock()
	if _, busy := s.active[source]; busy {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := s.runs.Create(ctx, run); err != nil {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("create sync run: %w", err)
	}
	s.active[source] = activeRun{runID: run.ID, cancel: cancel}
	s.mu.Unlock()

	defer cancel()
	defer s.release(source)
	return s.execute(ctx, run), nil
}

// CancelRun cancels an in-flight run by ID. Rows already committed
// stay committed.
func (s *SyncService) CancelRun(runID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.active {
		if run.runID == runID {
			run.cancel()
			return nil
		}
	}
	return ErrRunNotActive
}

func (s *SyncService) release(source models.SourceType) {
	s.mu.Lock()
	delete(s.active, source)
	s.mu.Unlock()
}

// execute runs the pipeline and finalizes the audit record. It never
// returns an error; failures are captured in the result and the run.
func (s *SyncService) execute(ctx context.Context, run *models.SyncRun) *SyncResult {
	result := &SyncResult{RunID: run.ID}
	log := s.log.WithFields(logrus.Fields{
		"runId":    run.ID,
		"source":   run.Source,
		"syncType": run.SyncType,
	})
	log.Info("Starting sync run")

	records, err := s.fetchRecords(ctx, run.Source)
	if err != nil {
		log.WithError(err).Error("Source fetch failed, aborting run")
		result.Message = fmt.Sprintf("fetch from %s failed: %v", run.Source, err)
		s.finalize(run, result, models.RunStatusFailed, result.Message)
		return result
	}

	grouped := s.grouper.Group(records)
	result.Skipped = grouped.Skipped
	result.Conflicts = grouped.Conflicts
	result.Errors = append(result.Errors, grouped.Errors...)
	result.ErrorCount = len(result.Errors)

	status := s.apply(ctx, run, grouped.Aggregates, result)

	result.Success = status == models.RunStatusCompleted
	if result.Success {
		result.Message = fmt.Sprintf("processed %d aggregates: %d created, %d updated", result.Processed, result.Created, result.Updated)
	}
	s.finalize(run, result, status, result.Message)

	log.WithFields(logrus.Fields{
		"status":    status,
		"processed": result.Processed,
		"created":   result.Created,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
		"errors":    result.ErrorCount,
		"conflicts": result.Conflicts,
	}).Info("Sync run finished")
	return result
}

// fetchRecords pulls the full batch through the cache so
// near-simultaneous runs against one source share a single upstream
// call.
func (s *SyncService) fetchRecords(ctx context.Context, source models.SourceType) ([]clients.RawRecord, error) {
	client := s.sources[source]
	signature := cache.Signature(string(source), map[string]string{"op": "fetch_all"})

	payload, err := s.cache.GetOrFetch(ctx, signature, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
		return client.FetchAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, ok := payload.([]clients.RawRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected cached payload type %T", payload)
	}
	return records, nil
}

// apply diffs the aggregates against the canonical store. Individual
// aggregate failures are collected and never abort the run;
// cancellation stops further processing but keeps committed rows.
func (s *SyncService) apply(ctx context.Context, run *models.SyncRun, aggregates []ProductAggregate, result *SyncResult) models.RunStatus {
	stockOnly := run.SyncType == models.SyncTypeStock

	// Every parent SKU present in the batch counts as seen, even when
	// its apply fails. A transient per-product error must not flag the
	// product as gone from the source.
	seen := make([]string, 0, len(aggregates))
	for _, aggregate := range aggregates {
		seen = append(seen, aggregate.ParentSKU)
	}

	for _, aggregate := range aggregates {
		select {
		case <-ctx.Done():
			result.Message = "sync run cancelled"
			return models.RunStatusCancelled
		default:
		}

		var created bool
		var err error
		if stockOnly {
			err = s.applyStock(ctx, aggregate)
		} else {
			created, err = s.applyFull(ctx, aggregate)
		}
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, models.RowError{
				Ref:     aggregate.ParentSKU,
				Message: err.Error(),
			})
			continue
		}

		result.Processed++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	// An empty batch is far more likely a broken feed than a deleted
	// catalog; never flag anything off the back of one.
	if stockOnly && len(seen) > 0 {
		flagged, err := s.products.MarkMissingNotFound(ctx, seen)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, models.RowError{
				Ref:     "batch",
				Message: fmt.Sprintf("mark missing products: %v", err),
			})
		} else if flagged > 0 {
			s.log.WithField("count", flagged).Info("Marked products absent from stock batch as not found")
		}
	}

	return models.RunStatusCompleted
}

// applyFull upserts one aggregate by parent SKU. Matching is exact,
// so re-running an identical batch updates in place and never
// duplicates.
func (s *SyncService) applyFull(ctx context.Context, aggregate ProductAggregate) (bool, error) {
	now := time.Now().UTC()

	existing, err := s.products.GetByParentSKU(ctx, aggregate.ParentSKU)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("lookup %s: %w", aggregate.ParentSKU, err)
	}

	if existing == nil {
		category, err := s.products.FindOrCreateCategory(ctx, string(aggregate.ProductType))
		if err != nil {
			return false, fmt.Errorf("category for %s: %w", aggregate.ParentSKU, err)
		}

		product := &models.Product{
			ParentSKU:      aggregate.ParentSKU,
			Name:           aggregate.Name,
			Brand:          aggregate.Brand,
			Description:    aggregate.Description,
			Images:         aggregate.Images,
			CategoryID:     &category.ID,
			ProductType:    aggregate.ProductType,
			GenderTargets:  aggregate.GenderTargets,
			TotalStock:     aggregate.TotalStock,
			AvailableSizes: aggregate.AvailableSizes,
			Weight:         aggregate.Weight,
			Length:         aggregate.Length,
			Width:          aggregate.Width,
			Height:         aggregate.Height,
			IsActive:       true,
			LastSyncedAt:   &now,
			SyncStatus:     models.SyncStatusSynced,
			Variants:       aggregate.Variants,
		}
		if err := s.products.Create(ctx, product); err != nil {
			return false, fmt.Errorf("create %s: %w", aggregate.ParentSKU, err)
		}
		return true, nil
	}

	existing.Name = aggregate.Name
	existing.Brand = aggregate.Brand
	existing.Description = aggregate.Description
	existing.Images = aggregate.Images
	existing.ProductType = aggregate.ProductType
	existing.GenderTargets = aggregate.GenderTargets
	existing.TotalStock = aggregate.TotalStock
	existing.AvailableSizes = aggregate.AvailableSizes
	existing.Weight = aggregate.Weight
	existing.Length = aggregate.Length
	existing.Width = aggregate.Width
	existing.Height = aggregate.Height
	existing.LastSyncedAt = &now
	existing.SyncStatus = models.SyncStatusSynced
	existing.Variants = nil

	if err := s.products.Update(ctx, existing); err != nil {
		return false, fmt.Errorf("update %s: %w", aggregate.ParentSKU, err)
	}
	if err := s.products.ReplaceVariants(ctx, existing.ID, aggregate.Variants); err != nil {
		return false, fmt.Errorf("replace variants of %s: %w", aggregate.ParentSKU, err)
	}
	return false, nil
}

// applyStock updates variant stock quantities and the derived total
// without touching catalog fields.
func (s *SyncService) applyStock(ctx context.Context, aggregate ProductAggregate) error {
	now := time.Now().UTC()

	existing, err := s.products.GetByParentSKU(ctx, aggregate.ParentSKU)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("parent SKU %s not in catalog", aggregate.ParentSKU)
		}
		return fmt.Errorf("lookup %s: %w", aggregate.ParentSKU, err)
	}

	for _, variant := range aggregate.Variants {
		if err := s.products.UpdateVariantStock(ctx, variant.SKU, variant.StockQuantity); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.log.WithField("sku", variant.SKU).Warn("Stock update for unknown variant SKU")
				continue
			}
			return fmt.Errorf("update stock of %s: %w", variant.SKU, err)
		}
	}

	existing.TotalStock = aggregate.TotalStock
	existing.LastSyncedAt = &now
	existing.SyncStatus = models.SyncStatusSynced
	existing.Variants = nil
	if err := s.products.Update(ctx, existing); err != nil {
		return fmt.Errorf("update %s: %w", aggregate.ParentSKU, err)
	}
	return nil
}

// finalize closes out the audit record. The background context keeps
// the final write possible after cancellation.
func (s *SyncService) finalize(run *models.SyncRun, result *SyncResult, status models.RunStatus, message string) {
	now := time.Now().UTC()
	run.Status = status
	run.Processed = result.Processed
	run.Created = result.Created
	run.Updated = result.Updated
	run.Skipped = result.Skipped
	run.ErrorCount = result.ErrorCount
	run.ConflictCount = result.Conflicts
	run.ErrorDetails = models.RowErrorList(result.Errors)
	run.CompletedAt = &now
	if status != models.RunStatusCompleted {
		run.ErrorMessage = message
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.runs.Update(ctx, run); err != nil {
		s.log.WithError(err).WithField("runId", run.ID).Error("Failed to finalize sync run")
	}
}
