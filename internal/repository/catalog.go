package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"greenmart/api/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the collection
// loaders can run inside or outside the import transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// CatalogFilter is a conjunction of the supplied constraints; nil fields add
// no condition.
type CatalogFilter struct {
	Category    *string
	Brand       *string
	MinPrice    *float64
	MaxPrice    *float64
	IsCertified *bool
	InStock     *bool
	Search      *string
	SortBy      string
	SortDesc    bool
}

type CatalogRow struct {
	Product      models.Product
	CategoryName string
	BrandName    *string
	Ratings      []int
	Features     []models.Feature
	Images       []models.ProductImage
}

type Suggestion struct {
	ProductID    int64
	Name         string
	CategoryName *string
	BrandName    *string
}

type ComparisonRow struct {
	Product   models.Product
	BrandName *string
	Ratings   []int
	Features  []models.Feature
}

type RecommendationRow struct {
	Product models.Product
	Ratings []int
}

type DetailRow struct {
	Product         models.Product
	CategoryName    string
	SubcategoryName string
	BrandName       *string
	Images          []models.ProductImage
	Features        []models.Feature
	Reviews         []models.Review
	Variations      []models.ProductVariation
	Traits          []models.Trait
}

type StatsFilter struct {
	CategoryID *int64
	BrandID    *int64
}

type GroupStat struct {
	ID       int64
	Name     string
	Count    int
	AvgPrice float64
}

type StatsResult struct {
	Total       int
	InStock     int
	AvgPrice    float64
	PerCategory []GroupStat
	PerBrand    []GroupStat
}

const productColumns = `
	p.product_id, p.name, p.description, p.small_description, p.price, p.currency,
	p.availability, p.in_stock, p.stock_quantity, p.is_certified, p.certification_info,
	p.benefits, p.usage_instructions, p.product_image, p.category_id, p.subcategory_id,
	p.brand_id, p.created_at
`

func scanProduct(row pgx.Row, dest ...any) (models.Product, error) {
	var p models.Product
	fields := []any{
		&p.ID, &p.Name, &p.Description, &p.SmallDescription, &p.Price, &p.Currency,
		&p.Availability, &p.InStock, &p.StockQuantity, &p.IsCertified, &p.CertificationInfo,
		&p.Benefits, &p.UsageInstructions, &p.MainImageURL, &p.CategoryID, &p.SubcategoryID,
		&p.BrandID, &p.CreatedAt,
	}
	fields = append(fields, dest...)
	if err := row.Scan(fields...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, err
	}
	return p, nil
}

// buildCatalogWhere renders the filter into a WHERE clause with positional
// args. Aliases: p = product, c = category, b = brand.
func buildCatalogWhere(f CatalogFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(format string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if f.Category != nil {
		add("c.name = $%d", *f.Category)
	}
	if f.Brand != nil {
		add("b.name = $%d", *f.Brand)
	}
	if f.MinPrice != nil {
		add("p.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("p.price <= $%d", *f.MaxPrice)
	}
	if f.IsCertified != nil {
		add("p.is_certified = $%d", *f.IsCertified)
	}
	if f.InStock != nil {
		add("p.in_stock = $%d", *f.InStock)
	}
	if f.Search != nil {
		args = append(args, "%"+*f.Search+"%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE $%d OR p.small_description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[string]string{
	"name":       "p.name",
	"price":      "p.price",
	"created_at": "p.created_at",
}

func orderClause(f CatalogFilter) string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		return " ORDER BY p.product_id"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, p.product_id", column, dir)
}

const catalogJoin = `
	FROM product p
	JOIN category c ON c.category_id = p.category_id
	LEFT JOIN brand b ON b.brand_id = p.brand_id
`

func (r *ProductRepository) CountProducts(ctx context.Context, f CatalogFilter) (int, error) {
	where, args := buildCatalogWhere(f)
	query := `SELECT COUNT(p.product_id)` + catalogJoin + where

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ProductRepository) ListCatalog(ctx context.Context, f CatalogFilter, limit, offset int) ([]CatalogRow, error) {
	where, args := buildCatalogWhere(f)
	args = append(args, limit, offset)
	query := `SELECT ` + productColumns + `, c.name, b.name` + catalogJoin + where + orderClause(f) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CatalogRow
	for rows.Next() {
		var row CatalogRow
		p, err := scanProduct(rows, &row.CategoryName, &row.BrandName)
		if err != nil {
			return nil, err
		}
		row.Product = p
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(result))
	for i, row := range result {
		ids[i] = row.Product.ID
	}

	ratings, err := r.loadRatings(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	features, err := r.loadFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}
	images, err := r.loadImages(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}

	for i := range result {
		id := result[i].Product.ID
		result[i].Ratings = ratings[id]
		result[i].Features = features[id]
		result[i].Images = images[id]
	}
	return result, nil
}

func (r *ProductRepository) ListSuggestions(ctx context.Context, search string, limit int) ([]Suggestion, error) {
	const query = `
		SELECT p.product_id, p.name, c.name, b.name
		FROM product p
		LEFT JOIN category c ON c.category_id = p.category_id
		LEFT JOIN brand b ON b.brand_id = p.brand_id
		WHERE p.name ILIKE $1 OR p.description ILIKE $1
		ORDER BY p.product_id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, "%"+search+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []Suggestion
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.ProductID, &s.Name, &s.CategoryName, &s.BrandName); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}

func (r *ProductRepository) ListByIDs(ctx context.Context, ids []int64) ([]ComparisonRow, error) {
	query := `SELECT ` + productColumns + `, b.name
		FROM product p
		LEFT JOIN brand b ON b.brand_id = p.brand_id
		WHERE p.product_id = ANY($1)
		ORDER BY p.product_id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ComparisonRow
	for rows.Next() {
		var row ComparisonRow
		p, err := scanProduct(rows, &row.BrandName)
		if err != nil {
			return nil, err
		}
		row.Product = p
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]int64, len(result))
	for i, row := range result {
		found[i] = row.Product.ID
	}
	ratings, err := r.loadRatings(ctx, r.pool, found)
	if err != nil {
		return nil, err
	}
	features, err := r.loadFeatures(ctx, found)
	if err != nil {
		return nil, err
	}
	for i := range result {
		id := result[i].Product.ID
		result[i].Ratings = ratings[id]
		result[i].Features = features[id]
	}
	return result, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM product p WHERE p.product_id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

func (r *ProductRepository) GetDetail(ctx context.Context, id int64) (DetailRow, error) {
	query := `SELECT ` + productColumns + `, c.name, s.name, b.name
		FROM product p
		JOIN category c ON c.category_id = p.category_id
		JOIN subcategory s ON s.subcategory_id = p.subcategory_id
		LEFT JOIN brand b ON b.brand_id = p.brand_id
		WHERE p.product_id = $1`

	var row DetailRow
	p, err := scanProduct(r.pool.QueryRow(ctx, query, id), &row.CategoryName, &row.SubcategoryName, &row.BrandName)
	if err != nil {
		return DetailRow{}, err
	}
	row.Product = p

	ids := []int64{id}
	images, err := r.loadImages(ctx, r.pool, ids)
	if err != nil {
		return DetailRow{}, err
	}
	features, err := r.loadFeatures(ctx, ids)
	if err != nil {
		return DetailRow{}, err
	}
	reviews, err := r.loadReviews(ctx, ids)
	if err != nil {
		return DetailRow{}, err
	}
	variations, err := r.ListVariations(ctx, id, nil, nil)
	if err != nil {
		return DetailRow{}, err
	}
	traits, err := r.loadTraits(ctx, ids)
	if err != nil {
		return DetailRow{}, err
	}

	row.Images = images[id]
	row.Features = features[id]
	row.Reviews = reviews[id]
	row.Variations = variations
	row.Traits = traits[id]
	return row, nil
}

// ListByCategory returns other products in the category, source excluded.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID, excludeID int64, limit int) ([]RecommendationRow, error) {
	query := `SELECT ` + productColumns + `
		FROM product p
		WHERE p.category_id = $1 AND p.product_id != $2
		ORDER BY p.product_id
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, categoryID, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecommendationRow
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, RecommendationRow{Product: p})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(result))
	for i, row := range result {
		ids[i] = row.Product.ID
	}
	ratings, err := r.loadRatings(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Ratings = ratings[result[i].Product.ID]
	}
	return result, nil
}

func (r *ProductRepository) ListVariations(ctx context.Context, productID int64, variationType, variationValue *string) ([]models.ProductVariation, error) {
	query := `
		SELECT variations_id, product_id, variation_type, variation_value, price_modifier, stock_quantity
		FROM product_variation
		WHERE product_id = $1`
	args := []any{productID}

	if variationType != nil {
		args = append(args, *variationType)
		query += fmt.Sprintf(" AND variation_type = $%d", len(args))
	}
	if variationValue != nil {
		args = append(args, *variationValue)
		query += fmt.Sprintf(" AND variation_value = $%d", len(args))
	}
	query += " ORDER BY variations_id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variations []models.ProductVariation
	for rows.Next() {
		var v models.ProductVariation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Type, &v.Value, &v.PriceModifier, &v.StockQuantity); err != nil {
			return nil, err
		}
		variations = append(variations, v)
	}
	return variations, rows.Err()
}

func buildStatsWhere(f StatsFilter) (string, []any) {
	var conds []string
	var args []any
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conds = append(conds, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if f.BrandID != nil {
		args = append(args, *f.BrandID)
		conds = append(conds, fmt.Sprintf("p.brand_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ProductRepository) Stats(ctx context.Context, f StatsFilter) (StatsResult, error) {
	where, args := buildStatsWhere(f)

	var result StatsResult
	totalsQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE p.in_stock),
		       COALESCE(AVG(p.price), 0)
		FROM product p` + where
	if err := r.pool.QueryRow(ctx, totalsQuery, args...).Scan(&result.Total, &result.InStock, &result.AvgPrice); err != nil {
		return StatsResult{}, err
	}

	categoryQuery := `
		SELECT c.category_id, c.name, COUNT(p.product_id), COALESCE(AVG(p.price), 0)
		FROM product p
		JOIN category c ON c.category_id = p.category_id` + where + `
		GROUP BY c.category_id, c.name
		ORDER BY c.category_id`
	perCategory, err := r.loadGroupStats(ctx, categoryQuery, args)
	if err != nil {
		return StatsResult{}, err
	}
	result.PerCategory = perCategory

	brandQuery := `
		SELECT b.brand_id, b.name, COUNT(p.product_id), COALESCE(AVG(p.price), 0)
		FROM product p
		JOIN brand b ON b.brand_id = p.brand_id` + where + `
		GROUP BY b.brand_id, b.name
		ORDER BY b.brand_id`
	perBrand, err := r.loadGroupStats(ctx, brandQuery, args)
	if err != nil {
		return StatsResult{}, err
	}
	result.PerBrand = perBrand

	return result, nil
}

func (r *ProductRepository) loadGroupStats(ctx context.Context, query string, args []any) ([]GroupStat, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []GroupStat
	for rows.Next() {
		var s GroupStat
		if err := rows.Scan(&s.ID, &s.Name, &s.Count, &s.AvgPrice); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *ProductRepository) CreateSubscription(ctx context.Context, productID int64, email string) error {
	const query = `
		INSERT INTO product_subscription (product_id, email, is_notified, created_at)
		VALUES ($1, $2, FALSE, NOW())
	`
	_, err := r.pool.Exec(ctx, query, productID, email)
	return err
}

func (r *ProductRepository) loadRatings(ctx context.Context, q querier, ids []int64) (map[int64][]int, error) {
	if len(ids) == 0 {
		return map[int64][]int{}, nil
	}
	const query = `SELECT product_id, rating FROM review WHERE product_id = ANY($1)`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make(map[int64][]int)
	for rows.Next() {
		var productID int64
		var rating int
		if err := rows.Scan(&productID, &rating); err != nil {
			return nil, err
		}
		ratings[productID] = append(ratings[productID], rating)
	}
	return ratings, rows.Err()
}

func (r *ProductRepository) loadFeatures(ctx context.Context, ids []int64) (map[int64][]models.Feature, error) {
	if len(ids) == 0 {
		return map[int64][]models.Feature{}, nil
	}
	const query = `
		SELECT feature_id, product_id, feature_name, feature_text, feature_value
		FROM feature WHERE product_id = ANY($1)
		ORDER BY feature_id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	features := make(map[int64][]models.Feature)
	for rows.Next() {
		var f models.Feature
		if err := rows.Scan(&f.ID, &f.ProductID, &f.Name, &f.Text, &f.Value); err != nil {
			return nil, err
		}
		features[f.ProductID] = append(features[f.ProductID], f)
	}
	return features, rows.Err()
}

func (r *ProductRepository) loadImages(ctx context.Context, q querier, ids []int64) (map[int64][]models.ProductImage, error) {
	if len(ids) == 0 {
		return map[int64][]models.ProductImage{}, nil
	}
	const query = `
		SELECT product_image_id, product_id, image_description, image_url, is_main, sort_order
		FROM product_image WHERE product_id = ANY($1)
		ORDER BY sort_order, product_image_id`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make(map[int64][]models.ProductImage)
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Description, &img.URLs, &img.IsMain, &img.SortOrder); err != nil {
			return nil, err
		}
		images[img.ProductID] = append(images[img.ProductID], img)
	}
	return images, rows.Err()
}

func (r *ProductRepository) loadReviews(ctx context.Context, ids []int64) (map[int64][]models.Review, error) {
	if len(ids) == 0 {
		return map[int64][]models.Review{}, nil
	}
	const query = `
		SELECT review_id, product_id, rating, review_text, reviewer_name, user_id, created_at
		FROM review WHERE product_id = ANY($1)
		ORDER BY created_at DESC, review_id DESC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make(map[int64][]models.Review)
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.ProductID, &rev.Rating, &rev.Text, &rev.ReviewerName, &rev.UserID, &rev.CreatedAt); err != nil {
			return nil, err
		}
		reviews[rev.ProductID] = append(reviews[rev.ProductID], rev)
	}
	return reviews, rows.Err()
}

func (r *ProductRepository) loadTraits(ctx context.Context, ids []int64) (map[int64][]models.Trait, error) {
	if len(ids) == 0 {
		return map[int64][]models.Trait{}, nil
	}
	const query = `
		SELECT traits_id, product_id, traits_name, traits_text
		FROM traits WHERE product_id = ANY($1)
		ORDER BY traits_id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traits := make(map[int64][]models.Trait)
	for rows.Next() {
		var t models.Trait
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Name, &t.Text); err != nil {
			return nil, err
		}
		traits[t.ProductID] = append(traits[t.ProductID], t)
	}
	return traits, rows.Err()
}
