package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/cache"
	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

// MockProductRepository is a mock implementation of ProductRepositoryInterface
type MockProductRepository struct {
	mock.Mock
}

var _ repository.ProductRepositoryInterface = (*MockProductRepository)(nil)

func (m *MockProductRepository) GetByParentSKU(ctx context.Context, parentSKU string) (*models.Product, error) {
	args := m.Called(ctx, parentSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	args := m.Called(ctx, productID, variants)
	return args.Error(0)
}

func (m *MockProductRepository) UpdateVariantStock(ctx context.Context, sku string, stockQuantity int) error {
	args := m.Called(ctx, sku, stockQuantity)
	return args.Error(0)
}

func (m *MockProductRepository) FindOrCreateCategory(ctx context.Context, name string) (*models.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, opts repository.ListOptions) ([]models.Product, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockProductRepository) MarkMissingNotFound(ctx context.Context, seenParentSKUs []string) (int64, error) {
	args := m.Called(ctx, seenParentSKUs)
	return args.Get(0).(int64), args.Error(1)
}

// MockSyncRunRepository is a mock implementation of SyncRunRepositoryInterface
type MockSyncRunRepository struct {
	mock.Mock
}

var _ repository.SyncRunRepositoryInterface = (*MockSyncRunRepository)(nil)

func (m *MockSyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) List(ctx context.Context, limit, offset int) ([]models.SyncRun, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.SyncRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncRunRepository) MostRecent(ctx context.Context, source models.SourceType) (*models.SyncRun, error) {
	args := m.Called(ctx, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) ListWithErrors(ctx context.Context, limit int) ([]models.SyncRun, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSyncRunRepository) Stats(ctx context.Context, since time.Time) (*repository.SyncStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SyncStats), args.Error(1)
}

// fakeSource is a canned source adapter
type fakeSource struct {
	source  models.SourceType
	records []clients.RawRecord
	err     error
	block   chan struct{}
}

func (f *fakeSource) Source() models.SourceType { return f.source }

func (f *fakeSource) FetchAll(ctx context.Context) ([]clients.RawRecord, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

func sheetBatch() []clients.RawRecord {
	return []clients.RawRecord{
		{
			clients.FieldName:          "Runner Pro",
			clients.FieldParentSKU:     "SBK001",
			clients.FieldSKU:           "SBK001-S",
			clients.FieldAvailableSize: "S",
			clients.FieldStockQuantity: "3",
			clients.FieldPrice:         "1299000",
			clients.FieldProductType:   "Shoes",
		},
		{
			clients.FieldName:          "Runner Pro",
			clients.FieldParentSKU:     "SBK001",
			clients.FieldSKU:           "SBK001-M",
			clients.FieldAvailableSize: "M",
			clients.FieldStockQuantity: "5",
			clients.FieldPrice:         "1299000",
		},
	}
}

func newTestService(products *MockProductRepository, runs *MockSyncRunRepository, source clients.SourceClient) *SyncService {
	return NewSyncService(products, runs, []clients.SourceClient{source}, cache.NewMemoryStore(), time.Minute, time.Minute)
}

func TestRunSyncCreatesNewProduct(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceSheet, records: sheetBatch()}

	runs.On("Create", mock.Anything, mock.AnythingOfType("*models.SyncRun")).Return(nil)
	runs.On("Update", mock.Anything, mock.AnythingOfType("*models.SyncRun")).Return(nil)
	products.On("GetByParentSKU", mock.Anything, "SBK001").Return(nil, repository.ErrNotFound)
	products.On("FindOrCreateCategory", mock.Anything, "SHOES").Return(&models.Category{ID: uuid.New(), Name: "SHOES"}, nil)
	products.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ParentSKU == "SBK001" &&
			p.TotalStock == 8 &&
			len(p.Variants) == 2 &&
			p.SyncStatus == models.SyncStatusSynced
	})).Return(nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.ErrorCount)
	products.AssertExpectations(t)
	runs.AssertExpectations(t)
}

func TestRunSyncUpdatesExistingProduct(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceSheet, records: sheetBatch()}

	existingID := uuid.New()
	existing := &models.Product{ID: existingID, ParentSKU: "SBK001", Name: "Old Name"}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	products.On("GetByParentSKU", mock.Anything, "SBK001").Return(existing, nil)
	products.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ID == existingID && p.Name == "Runner Pro" && p.TotalStock == 8
	})).Return(nil)
	products.On("ReplaceVariants", mock.Anything, existingID, mock.MatchedBy(func(vs []models.ProductVariant) bool {
		return len(vs) == 2
	})).Return(nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Updated)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	products.AssertExpectations(t)
}

func TestRunSyncFetchFailureAbortsBeforeApply(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceSheet, err: errors.New("upstream down")}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.MatchedBy(func(r *models.SyncRun) bool {
		return r.Status == models.RunStatusFailed && r.ErrorMessage != ""
	})).Return(nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "fetch")
	assert.Zero(t, result.Processed)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	products.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	runs.AssertExpectations(t)
}

func TestRunSyncPartialFailureContinues(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)

	batch := append(sheetBatch(), clients.RawRecord{
		clients.FieldName:          "Trail Jacket",
		clients.FieldParentSKU:     "JKT010",
		clients.FieldSKU:           "JKT010-XL",
		clients.FieldStockQuantity: "2",
	})
	source := &fakeSource{source: models.SourceSheet, records: batch}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.MatchedBy(func(r *models.SyncRun) bool {
		return r.Status == models.RunStatusCompleted && r.ErrorCount == 1 && len(r.ErrorDetails) == 1
	})).Return(nil)
	products.On("GetByParentSKU", mock.Anything, "SBK001").Return(nil, errors.New("connection reset"))
	products.On("GetByParentSKU", mock.Anything, "JKT010").Return(nil, repository.ErrNotFound)
	products.On("FindOrCreateCategory", mock.Anything, "OTHER").Return(&models.Category{ID: uuid.New(), Name: "OTHER"}, nil)
	products.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SBK001", result.Errors[0].Ref)
	runs.AssertExpectations(t)
}

func TestStockSyncMarksMissingNotFound(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceWarehouse, records: []clients.RawRecord{
		{
			clients.FieldName:          "Runner Pro",
			clients.FieldParentSKU:     "SBK001",
			clients.FieldSKU:           "SBK001-S",
			clients.FieldStockQuantity: "7",
		},
	}}

	existing := &models.Product{ID: uuid.New(), ParentSKU: "SBK001", Name: "Runner Pro"}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	products.On("GetByParentSKU", mock.Anything, "SBK001").Return(existing, nil)
	products.On("UpdateVariantStock", mock.Anything, "SBK001-S", 7).Return(nil)
	products.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.TotalStock == 7 && p.SyncStatus == models.SyncStatusSynced
	})).Return(nil)
	products.On("MarkMissingNotFound", mock.Anything, []string{"SBK001"}).Return(int64(2), nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceWarehouse, models.SyncTypeStock, models.TriggerScheduled)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)
	products.AssertExpectations(t)
}

func TestStockSyncFailedApplyStillCountsAsSeen(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceWarehouse, records: []clients.RawRecord{
		{
			clients.FieldName:          "Runner Pro",
			clients.FieldParentSKU:     "SBK001",
			clients.FieldSKU:           "SBK001-S",
			clients.FieldStockQuantity: "7",
		},
	}}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	products.On("GetByParentSKU", mock.Anything, "SBK001").Return(nil, errors.New("connection reset"))
	products.On("MarkMissingNotFound", mock.Anything, []string{"SBK001"}).Return(int64(0), nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceWarehouse, models.SyncTypeStock, models.TriggerScheduled)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ErrorCount)
	assert.Zero(t, result.Processed)
	products.AssertExpectations(t)
}

func TestStockSyncEmptyBatchNeverMarksMissing(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	source := &fakeSource{source: models.SourceWarehouse, records: nil}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(products, runs, source)
	result, err := svc.RunSync(context.Background(), models.SourceWarehouse, models.SyncTypeStock, models.TriggerScheduled)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.Processed)
	products.AssertNotCalled(t, "MarkMissingNotFound", mock.Anything, mock.Anything)
}

func TestStartRunRejectsConcurrentRunForSameSource(t *testing.T) {
	products := new(MockProductRepository)
	runs := new(MockSyncRunRepository)
	release := make(chan struct{})
	source := &fakeSource{source: models.SourceSheet, block: release}

	runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	runs.On("Update", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(products, runs, source)
	runID, err := svc.StartRun(models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	require.NoError(t, err)

	_, err = svc.StartRun(models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	require.NoError(t, svc.CancelRun(runID))
	close(release)

	assert.Eventually(t, func() bool {
		_, err := svc.StartRun(models.SourceSheet, models.SyncTypeFull, models.TriggerManual)
		if err == nil {
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunSyncUnknownSource(t *testing.T) {
	svc := newTestService(new(MockProductRepository), new(MockSyncRunRepository), &fakeSource{source: models.SourceSheet})
	_, err := svc.RunSync(context.Background(), models.SourceWarehouse, models.SyncTypeFull, models.TriggerManual)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestCancelRunNotActive(t *testing.T) {
	svc := newTestService(new(MockProductRepository), new(MockSyncRunRepository), &fakeSource{source: models.SourceSheet})
	assert.ErrorIs(t, svc.CancelRun(uuid.New()), ErrRunNotActive)
}
