package services

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
)

// passthroughTenant satisfies TenantContextFunc without a database.
func passthroughTenant(ctx context.Context, _ uuid.UUID) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func actorContext(tenantID uuid.UUID) context.Context {
	return auth.SetActor(context.Background(), &auth.Actor{
		TenantID: tenantID,
		UserID:   "tester",
	})
}

func elevatedContext(tenantID uuid.UUID) context.Context {
	return auth.SetActor(context.Background(), &auth.Actor{
		TenantID: tenantID,
		UserID:   "operator",
		Elevated: true,
	})
}

// fakeTaxonomyRepo is an in-memory TaxonomyRepository.
type fakeTaxonomyRepo struct {
	mu         sync.Mutex
	taxonomies map[uuid.UUID]*models.Taxonomy

	getByIDCalls int
	listCalls    int

	createErr               error
	createWithCategoriesErr error

	// categories persisted through CreateWithCategories
	createdCategories []*models.Category
}

func newFakeTaxonomyRepo() *fakeTaxonomyRepo {
	return &fakeTaxonomyRepo{taxonomies: make(map[uuid.UUID]*models.Taxonomy)}
}

var _ repositories.TaxonomyRepository = (*fakeTaxonomyRepo)(nil)

func (f *fakeTaxonomyRepo) Create(_ context.Context, tax *models.Taxonomy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if tax.ID == uuid.Nil {
		tax.ID = uuid.New()
	}
	now := time.Now()
	tax.CreatedAt = now
	tax.UpdatedAt = now
	stored := *tax
	f.taxonomies[tax.ID] = &stored
	return nil
}

func (f *fakeTaxonomyRepo) Update(_ context.Context, tax *models.Taxonomy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.taxonomies[tax.ID]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tax.TenantID {
		return apperrors.ErrNotFound
	}
	tax.UpdatedAt = time.Now()
	stored := *tax
	f.taxonomies[tax.ID] = &stored
	return nil
}

func (f *fakeTaxonomyRepo) SoftDelete(_ context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.taxonomies[id]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tenantID {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	existing.DeletedAt = &now
	existing.Status = models.TaxonomyStatusArchived
	existing.UpdatedBy = deletedBy
	return nil
}

func (f *fakeTaxonomyRepo) GetByID(_ context.Context, id, tenantID uuid.UUID) (*models.Taxonomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDCalls++
	existing, ok := f.taxonomies[id]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	out := *existing
	return &out, nil
}

func (f *fakeTaxonomyRepo) GetByNamespaceAndSlug(_ context.Context, tenantID uuid.UUID, namespace, slug string) (*models.Taxonomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tax := range f.taxonomies {
		if tax.DeletedAt == nil && tax.TenantID == tenantID && tax.Namespace == namespace && tax.Slug == slug {
			out := *tax
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeTaxonomyRepo) List(_ context.Context, tenantID uuid.UUID, filter repositories.TaxonomyListFilter) ([]*models.Taxonomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []*models.Taxonomy
	for _, tax := range f.taxonomies {
		if tax.DeletedAt != nil || tax.TenantID != tenantID {
			continue
		}
		if filter.Namespace != "" && tax.Namespace != filter.Namespace {
			continue
		}
		if filter.Status != "" && tax.Status != filter.Status {
			continue
		}
		cp := *tax
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeTaxonomyRepo) CreateWithCategories(_ context.Context, tax *models.Taxonomy, categories []*models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createWithCategoriesErr != nil {
		return f.createWithCategoriesErr
	}
	if tax.ID == uuid.Nil {
		tax.ID = uuid.New()
	}
	now := time.Now()
	tax.CreatedAt = now
	tax.UpdatedAt = now
	stored := *tax
	f.taxonomies[tax.ID] = &stored
	for _, cat := range categories {
		cat.TaxonomyID = tax.ID
		cp := *cat
		f.createdCategories = append(f.createdCategories, &cp)
	}
	return nil
}

// fakeCategoryRepo is an in-memory CategoryRepository.
type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*models.Category

	treeRows         []*models.CategoryTreeRow
	materializeCalls int

	leafCalls map[uuid.UUID]bool // last SetLeaf value per category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{
		categories: make(map[uuid.UUID]*models.Category),
		leafCalls:  make(map[uuid.UUID]bool),
	}
}

var _ repositories.CategoryRepository = (*fakeCategoryRepo)(nil)

func (f *fakeCategoryRepo) Create(_ context.Context, cat *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cat.ID == uuid.Nil {
		cat.ID = uuid.New()
	}
	now := time.Now()
	cat.CreatedAt = now
	cat.UpdatedAt = now
	stored := *cat
	f.categories[cat.ID] = &stored
	return nil
}

func (f *fakeCategoryRepo) Update(_ context.Context, cat *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.categories[cat.ID]
	if !ok || existing.DeletedAt != nil || existing.TenantID != cat.TenantID {
		return apperrors.ErrNotFound
	}
	cat.UpdatedAt = time.Now()
	stored := *cat
	f.categories[cat.ID] = &stored
	return nil
}

func (f *fakeCategoryRepo) SoftDelete(_ context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.categories[id]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tenantID {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	existing.DeletedAt = &now
	existing.IsActive = false
	existing.UpdatedBy = deletedBy
	return nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id, tenantID uuid.UUID) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.categories[id]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	out := *existing
	return &out, nil
}

func (f *fakeCategoryRepo) ListActiveByTaxonomy(_ context.Context, taxonomyID, tenantID uuid.UUID) ([]*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Category
	for _, cat := range f.categories {
		if cat.DeletedAt == nil && cat.IsActive && cat.TaxonomyID == taxonomyID && cat.TenantID == tenantID {
			cp := *cat
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (f *fakeCategoryRepo) MaterializeTree(_ context.Context, _, _ uuid.UUID, _ int) ([]*models.CategoryTreeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materializeCalls++
	return f.treeRows, nil
}

func (f *fakeCategoryRepo) CountActiveChildren(_ context.Context, parentID, tenantID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, cat := range f.categories {
		if cat.DeletedAt == nil && cat.IsActive && cat.TenantID == tenantID &&
			cat.ParentID != nil && *cat.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeCategoryRepo) SetLeaf(_ context.Context, id, tenantID uuid.UUID, isLeaf bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.categories[id]
	if !ok || existing.DeletedAt != nil || existing.TenantID != tenantID {
		return apperrors.ErrNotFound
	}
	existing.IsLeaf = isLeaf
	f.leafCalls[id] = isLeaf
	return nil
}

// fakeClassificationRepo is an in-memory ClassificationRepository.
type fakeClassificationRepo struct {
	mu              sync.Mutex
	classifications []*models.Classification
	countByTaxonomy map[uuid.UUID]int
}

func newFakeClassificationRepo() *fakeClassificationRepo {
	return &fakeClassificationRepo{countByTaxonomy: make(map[uuid.UUID]int)}
}

var _ repositories.ClassificationRepository = (*fakeClassificationRepo)(nil)

func (f *fakeClassificationRepo) Create(_ context.Context, cl *models.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cl.ID == uuid.Nil {
		cl.ID = uuid.New()
	}
	now := time.Now()
	cl.CreatedAt = now
	cl.UpdatedAt = now
	cp := *cl
	f.classifications = append(f.classifications, &cp)
	f.countByTaxonomy[cl.TaxonomyID]++
	return nil
}

func (f *fakeClassificationRepo) CountByTaxonomy(_ context.Context, taxonomyID, _ uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countByTaxonomy[taxonomyID], nil
}

func (f *fakeClassificationRepo) ListByEntity(_ context.Context, tenantID uuid.UUID, entityType, entityID string) ([]*models.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Classification
	for _, cl := range f.classifications {
		if cl.TenantID == tenantID && cl.EntityType == entityType && cl.EntityID == entityID {
			cp := *cl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeClassificationRepo) UpdateStatus(_ context.Context, id, tenantID uuid.UUID, status models.ClassificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cl := range f.classifications {
		if cl.ID == id && cl.TenantID == tenantID {
			cl.Status = status
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// memoryStore is an in-memory cache.Store recording its traffic.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte

	setCalls    int
	invalidated []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]byte)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.entries[key]
	return val, ok
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.entries[key] = value
}

func (m *memoryStore) InvalidatePattern(_ context.Context, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, pattern)
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
}

func (m *memoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
