package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"greenmart/api/internal/apperr"
	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
)

// ProductStore is the catalog read/write surface the service depends on,
// implemented by the pgx product repository.
type ProductStore interface {
	CountProducts(ctx context.Context, f repository.CatalogFilter) (int, error)
	ListCatalog(ctx context.Context, f repository.CatalogFilter, limit, offset int) ([]repository.CatalogRow, error)
	ListSuggestions(ctx context.Context, search string, limit int) ([]repository.Suggestion, error)
	ListByIDs(ctx context.Context, ids []int64) ([]repository.ComparisonRow, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	GetDetail(ctx context.Context, id int64) (repository.DetailRow, error)
	ListByCategory(ctx context.Context, categoryID, excludeID int64, limit int) ([]repository.RecommendationRow, error)
	ListVariations(ctx context.Context, productID int64, variationType, variationValue *string) ([]models.ProductVariation, error)
	Stats(ctx context.Context, f repository.StatsFilter) (repository.StatsResult, error)
	CreateSubscription(ctx context.Context, productID int64, email string) error
	Import(ctx context.Context, batch []repository.ImportProduct) ([]int64, error)
}

const (
	defaultPerPage = 10
	maxPerPage     = 100

	defaultSuggestionLimit = 10
	maxSuggestionLimit     = 20

	minCompareProducts = 2
	maxCompareProducts = 5

	defaultRecommendationLimit = 5
	maxRecommendationLimit     = 20
)

type CatalogService struct {
	products ProductStore
	log      zerolog.Logger
}

func NewCatalogService(products ProductStore, log zerolog.Logger) *CatalogService {
	return &CatalogService{products: products, log: log}
}

type ListInput struct {
	Category    *string
	Brand       *string
	MinPrice    *float64
	MaxPrice    *float64
	IsCertified *bool
	InStock     *bool
	Search      *string
	SortBy      string
	SortDesc    bool
	Page        int
	PerPage     int
}

type ProductCard struct {
	ID               int64
	Name             string
	SmallDescription string
	Price            float64
	Currency         string
	InStock          bool
	IsCertified      bool
	CategoryName     string
	BrandName        *string
	ImageURL         *string
	AverageRating    float64
	ReviewsCount     int
	Features         []models.Feature
	Images           []models.ProductImage
}

type Pagination struct {
	Page       int
	PerPage    int
	TotalCount int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

type CatalogPage struct {
	Items      []ProductCard
	Pagination Pagination
}

// List returns one catalog page under the given filter. Out-of-range
// pagination values are rejected, not clamped; an empty result under a valid
// filter is not found rather than an empty page.
func (s *CatalogService) List(ctx context.Context, input ListInput) (CatalogPage, error) {
	if input.SortBy != "" {
		switch input.SortBy {
		case "name", "price", "created_at":
		default:
			return CatalogPage{}, apperr.New(apperr.KindBadRequest, "invalid sort field")
		}
	}
	if input.MinPrice != nil && input.MaxPrice != nil && *input.MinPrice > *input.MaxPrice {
		return CatalogPage{}, apperr.New(apperr.KindBadRequest, "min_price exceeds max_price")
	}

	page := input.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return CatalogPage{}, apperr.New(apperr.KindBadRequest, "page must be at least 1")
	}
	perPage := input.PerPage
	if perPage == 0 {
		perPage = defaultPerPage
	}
	if perPage < 1 || perPage > maxPerPage {
		return CatalogPage{}, apperr.New(apperr.KindBadRequest, "per_page must be between 1 and 100")
	}

	filter := repository.CatalogFilter{
		Category:    input.Category,
		Brand:       input.Brand,
		MinPrice:    input.MinPrice,
		MaxPrice:    input.MaxPrice,
		IsCertified: input.IsCertified,
		InStock:     input.InStock,
		Search:      input.Search,
		SortBy:      input.SortBy,
		SortDesc:    input.SortDesc,
	}

	total, err := s.products.CountProducts(ctx, filter)
	if err != nil {
		return CatalogPage{}, fmt.Errorf("count products: %w", err)
	}
	if total == 0 {
		return CatalogPage{}, apperr.New(apperr.KindNotFound, "products not found")
	}

	offset := (page - 1) * perPage
	rows, err := s.products.ListCatalog(ctx, filter, perPage, offset)
	if err != nil {
		return CatalogPage{}, fmt.Errorf("list catalog: %w", err)
	}

	items := make([]ProductCard, 0, len(rows))
	for _, row := range rows {
		items = append(items, catalogCard(row))
	}

	return CatalogPage{
		Items:      items,
		Pagination: paginate(page, perPage, total),
	}, nil
}

func paginate(page, perPage, total int) Pagination {
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalCount: total,
		TotalPages: (total + perPage - 1) / perPage,
		HasNext:    page*perPage < total,
		HasPrev:    page > 1,
	}
}

func catalogCard(row repository.CatalogRow) ProductCard {
	return ProductCard{
		ID:               row.Product.ID,
		Name:             row.Product.Name,
		SmallDescription: row.Product.SmallDescription,
		Price:            row.Product.Price,
		Currency:         row.Product.Currency,
		InStock:          row.Product.InStock,
		IsCertified:      row.Product.IsCertified,
		CategoryName:     row.CategoryName,
		BrandName:        row.BrandName,
		ImageURL:         row.Product.MainImageURL,
		AverageRating:    averageRating(row.Ratings),
		ReviewsCount:     len(row.Ratings),
		Features:         row.Features,
		Images:           row.Images,
	}
}

// averageRating is the mean rating rounded to one decimal; no reviews is 0.0.
func averageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type SuggestionItem struct {
	ProductID    int64
	Name         string
	CategoryName *string
	BrandName    *string
}

// Suggestions powers search-as-you-type; queries shorter than two characters
// are rejected before they hit the database.
func (s *CatalogService) Suggestions(ctx context.Context, query string, limit int) ([]SuggestionItem, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, apperr.New(apperr.KindBadRequest, "search query too short")
	}
	if limit == 0 {
		limit = defaultSuggestionLimit
	}
	if limit < 1 || limit > maxSuggestionLimit {
		return nil, apperr.New(apperr.KindBadRequest, "limit must be between 1 and 20")
	}

	rows, err := s.products.ListSuggestions(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "products not found")
	}

	items := make([]SuggestionItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, SuggestionItem{
			ProductID:    row.ProductID,
			Name:         row.Name,
			CategoryName: row.CategoryName,
			BrandName:    row.BrandName,
		})
	}
	return items, nil
}

type ComparisonItem struct {
	ID            int64
	Name          string
	Price         float64
	Currency      string
	InStock       bool
	IsCertified   bool
	BrandName     *string
	ImageURL      *string
	AverageRating float64
	ReviewsCount  int
	Features      []models.Feature
}

// Compare returns a side-by-side set for two to five products. Every
// requested id must resolve; a partial match is reported as not found.
func (s *CatalogService) Compare(ctx context.Context, ids []int64) ([]ComparisonItem, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) < minCompareProducts || len(unique) > maxCompareProducts {
		return nil, apperr.New(apperr.KindBadRequest, "comparison requires between 2 and 5 products")
	}

	rows, err := s.products.ListByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("list products for comparison: %w", err)
	}
	if len(rows) != len(unique) {
		return nil, apperr.New(apperr.KindNotFound, "one or more products not found")
	}

	items := make([]ComparisonItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ComparisonItem{
			ID:            row.Product.ID,
			Name:          row.Product.Name,
			Price:         row.Product.Price,
			Currency:      row.Product.Currency,
			InStock:       row.Product.InStock,
			IsCertified:   row.Product.IsCertified,
			BrandName:     row.BrandName,
			ImageURL:      row.Product.MainImageURL,
			AverageRating: averageRating(row.Ratings),
			ReviewsCount:  len(row.Ratings),
			Features:      row.Features,
		})
	}
	return items, nil
}

type RecommendationItem struct {
	ID            int64
	Name          string
	Price         float64
	Currency      string
	InStock       bool
	ImageURL      *string
	AverageRating float64
	ReviewsCount  int
}

// Recommended lists other products from the source product's category.
func (s *CatalogService) Recommended(ctx context.Context, productID int64, limit int) ([]RecommendationItem, error) {
	if limit == 0 {
		limit = defaultRecommendationLimit
	}
	if limit < 1 || limit > maxRecommendationLimit {
		return nil, apperr.New(apperr.KindBadRequest, "limit must be between 1 and 20")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "product not found")
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	rows, err := s.products.ListByCategory(ctx, product.CategoryID, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	items := make([]RecommendationItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, RecommendationItem{
			ID:            row.Product.ID,
			Name:          row.Product.Name,
			Price:         row.Product.Price,
			Currency:      row.Product.Currency,
			InStock:       row.Product.InStock,
			ImageURL:      row.Product.MainImageURL,
			AverageRating: averageRating(row.Ratings),
			ReviewsCount:  len(row.Ratings),
		})
	}
	return items, nil
}

type ProductDetail struct {
	Product         models.Product
	CategoryName    string
	SubcategoryName string
	BrandName       *string
	AverageRating   float64
	ReviewsCount    int
	Images          []models.ProductImage
	Features        []models.Feature
	Reviews         []models.Review
	Variations      []models.ProductVariation
	Traits          []models.Trait
}

func (s *CatalogService) ProductDetail(ctx context.Context, productID int64) (ProductDetail, error) {
	row, err := s.products.GetDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ProductDetail{}, apperr.New(apperr.KindNotFound, "product not found")
		}
		return ProductDetail{}, fmt.Errorf("get product detail: %w", err)
	}

	ratings := make([]int, 0, len(row.Reviews))
	for _, review := range row.Reviews {
		ratings = append(ratings, review.Rating)
	}

	return ProductDetail{
		Product:         row.Product,
		CategoryName:    row.CategoryName,
		SubcategoryName: row.SubcategoryName,
		BrandName:       row.BrandName,
		AverageRating:   averageRating(ratings),
		ReviewsCount:    len(ratings),
		Images:          row.Images,
		Features:        row.Features,
		Reviews:         row.Reviews,
		Variations:      row.Variations,
		Traits:          row.Traits,
	}, nil
}

type VariationPrice struct {
	VariationID   int64
	Type          string
	Value         string
	PriceModifier float64
	FinalPrice    float64
	StockQuantity int
}

// VariationPrices resolves the per-variation price for a product. Final price
// is the base price plus the variation modifier.
func (s *CatalogService) VariationPrices(ctx context.Context, productID int64, variationType, variationValue *string) ([]VariationPrice, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "product not found")
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variations, err := s.products.ListVariations(ctx, productID, variationType, variationValue)
	if err != nil {
		return nil, fmt.Errorf("list variations: %w", err)
	}
	if len(variations) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "variations not found")
	}

	prices := make([]VariationPrice, 0, len(variations))
	for _, v := range variations {
		prices = append(prices, VariationPrice{
			VariationID:   v.ID,
			Type:          v.Type,
			Value:         v.Value,
			PriceModifier: v.PriceModifier,
			FinalPrice:    round2(product.Price + v.PriceModifier),
			StockQuantity: v.StockQuantity,
		})
	}
	return prices, nil
}

type CatalogStats struct {
	TotalProducts int
	InStock       int
	OutOfStock    int
	AveragePrice  float64
	PerCategory   []repository.GroupStat
	PerBrand      []repository.GroupStat
}

func (s *CatalogService) Stats(ctx context.Context, filter repository.StatsFilter) (CatalogStats, error) {
	result, err := s.products.Stats(ctx, filter)
	if err != nil {
		return CatalogStats{}, fmt.Errorf("load catalog stats: %w", err)
	}

	for i := range result.PerCategory {
		result.PerCategory[i].AvgPrice = round2(result.PerCategory[i].AvgPrice)
	}
	for i := range result.PerBrand {
		result.PerBrand[i].AvgPrice = round2(result.PerBrand[i].AvgPrice)
	}

	return CatalogStats{
		TotalProducts: result.Total,
		InStock:       result.InStock,
		OutOfStock:    result.Total - result.InStock,
		AveragePrice:  round2(result.AvgPrice),
		PerCategory:   result.PerCategory,
		PerBrand:      result.PerBrand,
	}, nil
}

// Import validates the batch, writes it in one transaction and reads the
// stored products back.
func (s *CatalogService) Import(ctx context.Context, batch []repository.ImportProduct) ([]ComparisonItem, error) {
	if len(batch) == 0 {
		return nil, apperr.New(apperr.KindBadRequest, "import batch is empty")
	}
	for _, item := range batch {
		if item.ID <= 0 || strings.TrimSpace(item.Name) == "" {
			return nil, apperr.New(apperr.KindBadRequest, "import item missing id or name")
		}
		if item.Price < 0 {
			return nil, apperr.New(apperr.KindBadRequest, "import item has negative price")
		}
	}

	ids, err := s.products.Import(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("import products: %w", err)
	}
	s.log.Info().Int("count", len(ids)).Msg("catalog import committed")

	rows, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read imported products: %w", err)
	}

	items := make([]ComparisonItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ComparisonItem{
			ID:            row.Product.ID,
			Name:          row.Product.Name,
			Price:         row.Product.Price,
			Currency:      row.Product.Currency,
			InStock:       row.Product.InStock,
			IsCertified:   row.Product.IsCertified,
			BrandName:     row.BrandName,
			ImageURL:      row.Product.MainImageURL,
			AverageRating: averageRating(row.Ratings),
			ReviewsCount:  len(row.Ratings),
			Features:      row.Features,
		})
	}
	return items, nil
}

// Subscribe records a back-in-stock notification request.
func (s *CatalogService) Subscribe(ctx context.Context, productID int64, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return apperr.New(apperr.KindBadRequest, "invalid email")
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return apperr.New(apperr.KindNotFound, "product not found")
		}
		return fmt.Errorf("get product: %w", err)
	}

	if err := s.products.CreateSubscription(ctx, productID, email); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}
