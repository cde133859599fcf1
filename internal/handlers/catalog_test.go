package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
	"greenmart/api/internal/service"
)

// stubProductStore is a canned catalog backend recording the pagination the
// handler layer actually passed down.
type stubProductStore struct {
	total       int
	rows        []repository.CatalogRow
	suggestions []repository.Suggestion

	lastLimit  int
	lastOffset int
}

func (s *stubProductStore) CountProducts(ctx context.Context, f repository.CatalogFilter) (int, error) {
	return s.total, nil
}

func (s *stubProductStore) ListCatalog(ctx context.Context, f repository.CatalogFilter, limit, offset int) ([]repository.CatalogRow, error) {
	s.lastLimit, s.lastOffset = limit, offset
	return s.rows, nil
}

func (s *stubProductStore) ListSuggestions(ctx context.Context, search string, limit int) ([]repository.Suggestion, error) {
	s.lastLimit = limit
	return s.suggestions, nil
}

func (s *stubProductStore) ListByIDs(ctx context.Context, ids []int64) ([]repository.ComparisonRow, error) {
	return nil, nil
}

func (s *stubProductStore) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return models.Product{}, repository.ErrProductNotFound
}

func (s *stubProductStore) GetDetail(ctx context.Context, id int64) (repository.DetailRow, error) {
	return repository.DetailRow{}, repository.ErrProductNotFound
}

func (s *stubProductStore) ListByCategory(ctx context.Context, categoryID, excludeID int64, limit int) ([]repository.RecommendationRow, error) {
	return nil, nil
}

func (s *stubProductStore) ListVariations(ctx context.Context, productID int64, variationType, variationValue *string) ([]models.ProductVariation, error) {
	return nil, nil
}

func (s *stubProductStore) Stats(ctx context.Context, f repository.StatsFilter) (repository.StatsResult, error) {
	return repository.StatsResult{}, nil
}

func (s *stubProductStore) CreateSubscription(ctx context.Context, productID int64, email string) error {
	return nil
}

func (s *stubProductStore) Import(ctx context.Context, batch []repository.ImportProduct) ([]int64, error) {
	return nil, nil
}

func newCatalogRouter(t *testing.T, store service.ProductStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := HandlerSet{
		log:     zerolog.Nop(),
		catalog: service.NewCatalogService(store, zerolog.Nop()),
	}
	router := gin.New()
	router.GET("/product/catalog", h.Catalog)
	router.GET("/product/search/suggestions", h.Suggestions)
	return router
}

func getCatalog(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCatalog_RejectsBadPagination(t *testing.T) {
	router := newCatalogRouter(t, &stubProductStore{})

	for _, query := range []string{
		"page=abc",
		"page=0",
		"page=-1",
		"per_page=abc",
		"per_page=0",
		"per_page=500",
	} {
		w := getCatalog(router, "/product/catalog?"+query)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, query)
	}
}

func TestCatalog_AbsentPaginationUsesDefaults(t *testing.T) {
	store := &stubProductStore{
		total: 3,
		rows: []repository.CatalogRow{
			{Product: models.Product{ID: 1, Name: "apples"}, CategoryName: "fruits"},
		},
	}
	router := newCatalogRouter(t, store)

	w := getCatalog(router, "/product/catalog")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, store.lastLimit)
	assert.Equal(t, 0, store.lastOffset)
}

func TestSuggestions_RejectsBadLimit(t *testing.T) {
	router := newCatalogRouter(t, &stubProductStore{})

	for _, query := range []string{"limit=abc", "limit=0", "limit=100"} {
		w := getCatalog(router, "/product/search/suggestions?query=app&"+query)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, query)
	}
}

func TestSuggestions_AbsentLimitUsesDefault(t *testing.T) {
	store := &stubProductStore{
		suggestions: []repository.Suggestion{{ProductID: 1, Name: "apples"}},
	}
	router := newCatalogRouter(t, store)

	w := getCatalog(router, "/product/search/suggestions?query=app")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, store.lastLimit)
}
