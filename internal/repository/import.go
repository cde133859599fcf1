package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"greenmart/api/internal/models"
)

type ImportCategory struct {
	ID          int64
	Name        string
	Description string
}

type ImportSubcategory struct {
	ID          int64
	Name        string
	Description string
}

type ImportBrand struct {
	ID          int64
	Name        string
	Description string
	LogoURL     *string
}

type ImportImage struct {
	ID          int64
	URL         string
	Description string
	IsMain      bool
	SortOrder   int
}

type ImportProduct struct {
	ID                int64
	Name              string
	Description       string
	Price             float64
	Currency          string
	Availability      bool
	InStock           bool
	StockQuantity     int
	IsCertified       bool
	CertificationInfo *string
	Benefits          *string
	UsageInstructions *string
	Category          ImportCategory
	Subcategory       ImportSubcategory
	Brand             ImportBrand
	Images            []ImportImage
}

// Import runs the whole batch in one transaction: categories and brands are
// resolved or created, products are updated in place or inserted, images are
// deduplicated by id. Subcategory rows are inserted unconditionally with the
// supplied id, so re-importing an already-known subcategory fails the batch
// with a duplicate-key error.
func (r *ProductRepository) Import(ctx context.Context, batch []ImportProduct) ([]int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(batch))
	for _, item := range batch {
		if err := r.importOne(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("import product %d: %w", item.ID, err)
		}
		ids = append(ids, item.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import tx: %w", err)
	}
	return ids, nil
}

func (r *ProductRepository) importOne(ctx context.Context, tx querier, item ImportProduct) error {
	var categoryID int64
	err := tx.QueryRow(ctx, `SELECT category_id FROM category WHERE category_id = $1`, item.Category.ID).Scan(&categoryID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		const insert = `INSERT INTO category (category_id, name, description) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insert, item.Category.ID, item.Category.Name, item.Category.Description); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
	case err != nil:
		return fmt.Errorf("resolve category: %w", err)
	}

	const insertSubcategory = `
		INSERT INTO subcategory (subcategory_id, name, description, category_id)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertSubcategory,
		item.Subcategory.ID, item.Subcategory.Name, item.Subcategory.Description, item.Category.ID); err != nil {
		return fmt.Errorf("insert subcategory: %w", err)
	}

	var brandID int64
	err = tx.QueryRow(ctx, `SELECT brand_id FROM brand WHERE brand_id = $1`, item.Brand.ID).Scan(&brandID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		const insert = `INSERT INTO brand (brand_id, name, description, logo_url) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insert, item.Brand.ID, item.Brand.Name, item.Brand.Description, item.Brand.LogoURL); err != nil {
			return fmt.Errorf("insert brand: %w", err)
		}
	case err != nil:
		return fmt.Errorf("resolve brand: %w", err)
	}

	var productID int64
	err = tx.QueryRow(ctx, `SELECT product_id FROM product WHERE product_id = $1`, item.ID).Scan(&productID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("resolve product: %w", err)
	}
	if err == nil {
		const update = `
			UPDATE product SET
				name = $2, description = $3, price = $4, currency = $5,
				availability = $6, in_stock = $7, stock_quantity = $8,
				is_certified = $9, certification_info = $10, benefits = $11,
				usage_instructions = $12, category_id = $13, subcategory_id = $14,
				brand_id = $15
			WHERE product_id = $1`
		if _, err := tx.Exec(ctx, update,
			item.ID, item.Name, item.Description, item.Price, item.Currency,
			item.Availability, item.InStock, item.StockQuantity,
			item.IsCertified, item.CertificationInfo, item.Benefits,
			item.UsageInstructions, item.Category.ID, item.Subcategory.ID,
			item.Brand.ID); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
	} else {
		var mainImage *string
		if len(item.Images) > 0 {
			mainImage = &item.Images[0].URL
		}
		small := truncateRunes(item.Description, 200)
		const insert = `
			INSERT INTO product (
				product_id, name, description, small_description, price, currency,
				availability, in_stock, stock_quantity, is_certified, certification_info,
				benefits, usage_instructions, product_image, category_id, subcategory_id,
				brand_id, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())`
		if _, err := tx.Exec(ctx, insert,
			item.ID, item.Name, item.Description, small, item.Price, item.Currency,
			item.Availability, item.InStock, item.StockQuantity, item.IsCertified,
			item.CertificationInfo, item.Benefits, item.UsageInstructions, mainImage,
			item.Category.ID, item.Subcategory.ID, item.Brand.ID); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	}

	for _, image := range item.Images {
		var imageID int64
		err := tx.QueryRow(ctx, `SELECT product_image_id FROM product_image WHERE product_image_id = $1`, image.ID).Scan(&imageID)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("resolve image: %w", err)
		}
		urls := models.ImageURLSet{Small: image.URL, Medium: image.URL, Large: image.URL}
		const insert = `
			INSERT INTO product_image (product_image_id, product_id, image_description, image_url, is_main, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insert, image.ID, item.ID, image.Description, urls, image.IsMain, image.SortOrder); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}

	return nil
}

// truncateRunes limits s to n characters. Slicing by bytes would split a
// multibyte rune and Postgres rejects the resulting invalid UTF-8.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
