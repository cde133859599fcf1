package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"greenmart/api/internal/apperr"
	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
)

// --- mock ---

type mockProductStore struct{ mock.Mock }

func (m *mockProductStore) CountProducts(ctx context.Context, f repository.CatalogFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}
func (m *mockProductStore) ListCatalog(ctx context.Context, f repository.CatalogFilter, limit, offset int) ([]repository.CatalogRow, error) {
	args := m.Called(ctx, f, limit, offset)
	rows, _ := args.Get(0).([]repository.CatalogRow)
	return rows, args.Error(1)
}
func (m *mockProductStore) ListSuggestions(ctx context.Context, search string, limit int) ([]repository.Suggestion, error) {
	args := m.Called(ctx, search, limit)
	rows, _ := args.Get(0).([]repository.Suggestion)
	return rows, args.Error(1)
}
func (m *mockProductStore) ListByIDs(ctx context.Context, ids []int64) ([]repository.ComparisonRow, error) {
	args := m.Called(ctx, ids)
	rows, _ := args.Get(0).([]repository.ComparisonRow)
	return rows, args.Error(1)
}
func (m *mockProductStore) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Product), args.Error(1)
}
func (m *mockProductStore) GetDetail(ctx context.Context, id int64) (repository.DetailRow, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.DetailRow), args.Error(1)
}
func (m *mockProductStore) ListByCategory(ctx context.Context, categoryID, excludeID int64, limit int) ([]repository.RecommendationRow, error) {
	args := m.Called(ctx, categoryID, excludeID, limit)
	rows, _ := args.Get(0).([]repository.RecommendationRow)
	return rows, args.Error(1)
}
func (m *mockProductStore) ListVariations(ctx context.Context, productID int64, variationType, variationValue *string) ([]models.ProductVariation, error) {
	args := m.Called(ctx, productID, variationType, variationValue)
	rows, _ := args.Get(0).([]models.ProductVariation)
	return rows, args.Error(1)
}
func (m *mockProductStore) Stats(ctx context.Context, f repository.StatsFilter) (repository.StatsResult, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(repository.StatsResult), args.Error(1)
}
func (m *mockProductStore) CreateSubscription(ctx context.Context, productID int64, email string) error {
	return m.Called(ctx, productID, email).Error(0)
}
func (m *mockProductStore) Import(ctx context.Context, batch []repository.ImportProduct) ([]int64, error) {
	args := m.Called(ctx, batch)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func newCatalogService(ps *mockProductStore) *CatalogService {
	return NewCatalogService(ps, zerolog.Nop())
}

func catalogRows(n int) []repository.CatalogRow {
	rows := make([]repository.CatalogRow, n)
	for i := range rows {
		rows[i] = repository.CatalogRow{
			Product:      models.Product{ID: int64(i + 1), Name: "p", Price: 10},
			CategoryName: "vegetables",
		}
	}
	return rows
}

// --- List ---

func TestList_EmptyResult_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("CountProducts", mock.Anything, mock.Anything).Return(0, nil)

	svc := newCatalogService(ps)
	_, err := svc.List(context.Background(), ListInput{})

	requireKind(t, err, apperr.KindNotFound)
	ps.AssertNotCalled(t, "ListCatalog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestList_InvalidSortField_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})
	_, err := svc.List(context.Background(), ListInput{SortBy: "rating; DROP TABLE product"})

	requireKind(t, err, apperr.KindBadRequest)
}

func TestList_MinAboveMax_ReturnsBadRequest(t *testing.T) {
	minPrice, maxPrice := 100.0, 10.0
	svc := newCatalogService(&mockProductStore{})
	_, err := svc.List(context.Background(), ListInput{MinPrice: &minPrice, MaxPrice: &maxPrice})

	requireKind(t, err, apperr.KindBadRequest)
}

func TestList_PerPageBounds(t *testing.T) {
	valid := []struct {
		requested int
		effective int
	}{
		{0, 10}, // unset falls back to the default
		{2, 2},
		{45, 45},
		{100, 100},
	}
	for _, tc := range valid {
		ps := &mockProductStore{}
		ps.On("CountProducts", mock.Anything, mock.Anything).Return(200, nil)
		ps.On("ListCatalog", mock.Anything, mock.Anything, tc.effective, 0).Return(catalogRows(tc.effective), nil)

		svc := newCatalogService(ps)
		page, err := svc.List(context.Background(), ListInput{Page: 1, PerPage: tc.requested})

		require.NoError(t, err, "per_page %d", tc.requested)
		assert.Equal(t, tc.effective, page.Pagination.PerPage, "per_page %d", tc.requested)
		ps.AssertExpectations(t)
	}
}

func TestList_OutOfRangePagination_ReturnsBadRequest(t *testing.T) {
	for _, input := range []ListInput{
		{Page: -1, PerPage: 10},
		{Page: 1, PerPage: -3},
		{Page: 1, PerPage: 101},
		{Page: 1, PerPage: 500},
	} {
		ps := &mockProductStore{}
		svc := newCatalogService(ps)
		_, err := svc.List(context.Background(), input)

		requireKind(t, err, apperr.KindBadRequest)
		ps.AssertNotCalled(t, "CountProducts", mock.Anything, mock.Anything)
	}
}

func TestList_PaginationMath(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("CountProducts", mock.Anything, mock.Anything).Return(45, nil)
	ps.On("ListCatalog", mock.Anything, mock.Anything, 10, 10).Return(catalogRows(10), nil)

	svc := newCatalogService(ps)
	page, err := svc.List(context.Background(), ListInput{Page: 2, PerPage: 10})

	require.NoError(t, err)
	assert.Equal(t, 45, page.Pagination.TotalCount)
	assert.Equal(t, 5, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestList_HasNextFalseOnExactBoundary(t *testing.T) {
	// 40 products, page 4 of 10: page*per_page == total, nothing follows
	ps := &mockProductStore{}
	ps.On("CountProducts", mock.Anything, mock.Anything).Return(40, nil)
	ps.On("ListCatalog", mock.Anything, mock.Anything, 10, 30).Return(catalogRows(10), nil)

	svc := newCatalogService(ps)
	page, err := svc.List(context.Background(), ListInput{Page: 4, PerPage: 10})

	require.NoError(t, err)
	assert.Equal(t, 4, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestList_FirstPageHasNoPrev(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("CountProducts", mock.Anything, mock.Anything).Return(3, nil)
	ps.On("ListCatalog", mock.Anything, mock.Anything, 10, 0).Return(catalogRows(3), nil)

	svc := newCatalogService(ps)
	page, err := svc.List(context.Background(), ListInput{})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
}

func TestList_PriceBandSmallPage(t *testing.T) {
	// five products priced 5/12/30/45/60; the 10..50 band matches three and a
	// two-item page returns the first two in insertion order
	minPrice, maxPrice := 10.0, 50.0
	ps := &mockProductStore{}
	expected := repository.CatalogFilter{MinPrice: &minPrice, MaxPrice: &maxPrice}
	ps.On("CountProducts", mock.Anything, expected).Return(3, nil)
	ps.On("ListCatalog", mock.Anything, expected, 2, 0).Return([]repository.CatalogRow{
		{Product: models.Product{ID: 2, Price: 12}, CategoryName: "grains"},
		{Product: models.Product{ID: 3, Price: 30}, CategoryName: "grains"},
	}, nil)

	svc := newCatalogService(ps)
	page, err := svc.List(context.Background(), ListInput{
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		Page:     1,
		PerPage:  2,
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Items[0].ID)
	assert.Equal(t, int64(3), page.Items[1].ID)
	assert.Equal(t, 3, page.Pagination.TotalCount)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
}

func TestList_FilterPassedThrough(t *testing.T) {
	category := "fruits"
	inStock := true
	ps := &mockProductStore{}
	expected := repository.CatalogFilter{Category: &category, InStock: &inStock, SortBy: "price", SortDesc: true}
	ps.On("CountProducts", mock.Anything, expected).Return(1, nil)
	ps.On("ListCatalog", mock.Anything, expected, 10, 0).Return(catalogRows(1), nil)

	svc := newCatalogService(ps)
	_, err := svc.List(context.Background(), ListInput{
		Category: &category,
		InStock:  &inStock,
		SortBy:   "price",
		SortDesc: true,
	})

	require.NoError(t, err)
	ps.AssertExpectations(t)
}

func TestList_CardCarriesRatingSummary(t *testing.T) {
	ps := &mockProductStore{}
	rows := []repository.CatalogRow{{
		Product:      models.Product{ID: 1, Name: "apples"},
		CategoryName: "fruits",
		Ratings:      []int{4, 5},
	}}
	ps.On("CountProducts", mock.Anything, mock.Anything).Return(1, nil)
	ps.On("ListCatalog", mock.Anything, mock.Anything, 10, 0).Return(rows, nil)

	svc := newCatalogService(ps)
	page, err := svc.List(context.Background(), ListInput{})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 4.5, page.Items[0].AverageRating)
	assert.Equal(t, 2, page.Items[0].ReviewsCount)
}

// --- averageRating ---

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, averageRating(nil))
	assert.Equal(t, 0.0, averageRating([]int{}))
	assert.Equal(t, 4.5, averageRating([]int{4, 5}))
	assert.Equal(t, 5.0, averageRating([]int{5, 5, 5}))
	assert.Equal(t, 4.3, averageRating([]int{4, 4, 5})) // 4.333… rounds to one decimal
	assert.Equal(t, 3.7, averageRating([]int{3, 4, 4}))
}

// --- Suggestions ---

func TestSuggestions_ShortQuery_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})
	_, err := svc.Suggestions(context.Background(), " a ", 10)

	requireKind(t, err, apperr.KindBadRequest)
}

func TestSuggestions_NoMatches_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("ListSuggestions", mock.Anything, "zzz", 10).Return(nil, nil)

	svc := newCatalogService(ps)
	_, err := svc.Suggestions(context.Background(), "zzz", 10)

	requireKind(t, err, apperr.KindNotFound)
}

func TestSuggestions_LimitOutOfRange_ReturnsBadRequest(t *testing.T) {
	ps := &mockProductStore{}
	svc := newCatalogService(ps)

	_, err := svc.Suggestions(context.Background(), "app", 100)
	requireKind(t, err, apperr.KindBadRequest)

	_, err = svc.Suggestions(context.Background(), "app", -1)
	requireKind(t, err, apperr.KindBadRequest)

	ps.AssertNotCalled(t, "ListSuggestions", mock.Anything, mock.Anything, mock.Anything)
}

func TestSuggestions_DefaultLimit(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("ListSuggestions", mock.Anything, "app", defaultSuggestionLimit).
		Return([]repository.Suggestion{{ProductID: 1, Name: "apples"}}, nil)

	svc := newCatalogService(ps)
	items, err := svc.Suggestions(context.Background(), "app", 0)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ProductID)
	ps.AssertExpectations(t)
}

// --- Compare ---

func TestCompare_TooFewOrTooMany_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})

	_, err := svc.Compare(context.Background(), []int64{1})
	requireKind(t, err, apperr.KindBadRequest)

	_, err = svc.Compare(context.Background(), []int64{1, 2, 3, 4, 5, 6})
	requireKind(t, err, apperr.KindBadRequest)
}

func TestCompare_DuplicatesCollapseBelowMinimum(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})
	_, err := svc.Compare(context.Background(), []int64{7, 7, 7})

	requireKind(t, err, apperr.KindBadRequest)
}

func TestCompare_MissingProduct_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("ListByIDs", mock.Anything, []int64{1, 2, 99}).Return([]repository.ComparisonRow{
		{Product: models.Product{ID: 1}},
		{Product: models.Product{ID: 2}},
	}, nil)

	svc := newCatalogService(ps)
	_, err := svc.Compare(context.Background(), []int64{1, 2, 99})

	requireKind(t, err, apperr.KindNotFound)
}

func TestCompare_HappyPath(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("ListByIDs", mock.Anything, []int64{1, 2}).Return([]repository.ComparisonRow{
		{Product: models.Product{ID: 1, Name: "apples", Price: 2.5}, Ratings: []int{5}},
		{Product: models.Product{ID: 2, Name: "pears", Price: 3.0}},
	}, nil)

	svc := newCatalogService(ps)
	items, err := svc.Compare(context.Background(), []int64{1, 2})

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 5.0, items[0].AverageRating)
	assert.Equal(t, 0.0, items[1].AverageRating)
}

// --- Recommended ---

func TestRecommended_UnknownProduct_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(99)).Return(models.Product{}, repository.ErrProductNotFound)

	svc := newCatalogService(ps)
	_, err := svc.Recommended(context.Background(), 99, 0)

	requireKind(t, err, apperr.KindNotFound)
}

func TestRecommended_LimitOutOfRange_ReturnsBadRequest(t *testing.T) {
	ps := &mockProductStore{}
	svc := newCatalogService(ps)
	_, err := svc.Recommended(context.Background(), 7, 50)

	requireKind(t, err, apperr.KindBadRequest)
	ps.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestRecommended_SameCategoryExcludingSource(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(7)).Return(models.Product{ID: 7, CategoryID: 3}, nil)
	ps.On("ListByCategory", mock.Anything, int64(3), int64(7), defaultRecommendationLimit).
		Return([]repository.RecommendationRow{
			{Product: models.Product{ID: 8}, Ratings: []int{4, 4}},
		}, nil)

	svc := newCatalogService(ps)
	items, err := svc.Recommended(context.Background(), 7, 0)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(8), items[0].ID)
	assert.Equal(t, 4.0, items[0].AverageRating)
	ps.AssertExpectations(t)
}

// --- VariationPrices ---

func TestVariationPrices_NoVariations_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(1)).Return(models.Product{ID: 1, Price: 10}, nil)
	ps.On("ListVariations", mock.Anything, int64(1), (*string)(nil), (*string)(nil)).Return(nil, nil)

	svc := newCatalogService(ps)
	_, err := svc.VariationPrices(context.Background(), 1, nil, nil)

	requireKind(t, err, apperr.KindNotFound)
}

func TestVariationPrices_FinalPriceIsBasePlusModifier(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(1)).Return(models.Product{ID: 1, Price: 10.50}, nil)
	ps.On("ListVariations", mock.Anything, int64(1), (*string)(nil), (*string)(nil)).Return([]models.ProductVariation{
		{ID: 11, Type: "weight", Value: "1kg", PriceModifier: 0},
		{ID: 12, Type: "weight", Value: "5kg", PriceModifier: 38.25},
	}, nil)

	svc := newCatalogService(ps)
	prices, err := svc.VariationPrices(context.Background(), 1, nil, nil)

	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 10.50, prices[0].FinalPrice)
	assert.Equal(t, 48.75, prices[1].FinalPrice)
}

// --- Stats ---

func TestStats_DerivesOutOfStockAndRounds(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("Stats", mock.Anything, repository.StatsFilter{}).Return(repository.StatsResult{
		Total:    120,
		InStock:  95,
		AvgPrice: 14.3567,
		PerCategory: []repository.GroupStat{
			{ID: 1, Name: "fruits", Count: 60, AvgPrice: 9.999},
		},
	}, nil)

	svc := newCatalogService(ps)
	stats, err := svc.Stats(context.Background(), repository.StatsFilter{})

	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalProducts)
	assert.Equal(t, 95, stats.InStock)
	assert.Equal(t, 25, stats.OutOfStock)
	assert.Equal(t, 14.36, stats.AveragePrice)
	require.Len(t, stats.PerCategory, 1)
	assert.Equal(t, 10.0, stats.PerCategory[0].AvgPrice)
}

// --- Import ---

func TestImport_EmptyBatch_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})
	_, err := svc.Import(context.Background(), nil)

	requireKind(t, err, apperr.KindBadRequest)
}

func TestImport_InvalidItem_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})

	_, err := svc.Import(context.Background(), []repository.ImportProduct{{ID: 0, Name: "x", Price: 1}})
	requireKind(t, err, apperr.KindBadRequest)

	_, err = svc.Import(context.Background(), []repository.ImportProduct{{ID: 1, Name: "  ", Price: 1}})
	requireKind(t, err, apperr.KindBadRequest)

	_, err = svc.Import(context.Background(), []repository.ImportProduct{{ID: 1, Name: "x", Price: -1}})
	requireKind(t, err, apperr.KindBadRequest)
}

func TestImport_HappyPath_ReadsBackStoredProducts(t *testing.T) {
	ps := &mockProductStore{}
	batch := []repository.ImportProduct{{ID: 42, Name: "organic oats", Price: 4.5}}
	ps.On("Import", mock.Anything, batch).Return([]int64{42}, nil)
	ps.On("ListByIDs", mock.Anything, []int64{42}).Return([]repository.ComparisonRow{
		{Product: models.Product{ID: 42, Name: "organic oats", Price: 4.5}},
	}, nil)

	svc := newCatalogService(ps)
	items, err := svc.Import(context.Background(), batch)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(42), items[0].ID)
	ps.AssertExpectations(t)
}

// --- Subscribe ---

func TestSubscribe_InvalidEmail_ReturnsBadRequest(t *testing.T) {
	svc := newCatalogService(&mockProductStore{})
	err := svc.Subscribe(context.Background(), 1, "not-an-email")

	requireKind(t, err, apperr.KindBadRequest)
}

func TestSubscribe_UnknownProduct_ReturnsNotFound(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(99)).Return(models.Product{}, repository.ErrProductNotFound)

	svc := newCatalogService(ps)
	err := svc.Subscribe(context.Background(), 99, "a@b.com")

	requireKind(t, err, apperr.KindNotFound)
}

func TestSubscribe_HappyPath_NormalizesEmail(t *testing.T) {
	ps := &mockProductStore{}
	ps.On("GetProduct", mock.Anything, int64(1)).Return(models.Product{ID: 1}, nil)
	ps.On("CreateSubscription", mock.Anything, int64(1), "a@b.com").Return(nil)

	svc := newCatalogService(ps)
	err := svc.Subscribe(context.Background(), 1, "  A@B.com ")

	require.NoError(t, err)
	ps.AssertExpectations(t)
}
