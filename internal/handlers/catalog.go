package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
	"greenmart/api/internal/service"
)

func queryString(c *gin.Context, name string) *string {
	if value, ok := c.GetQuery(name); ok && value != "" {
		return &value
	}
	return nil
}

func queryFloat(c *gin.Context, name string) (*float64, bool) {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return nil, true
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return nil, true
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// queryIntRange parses an optional integer query parameter. Absent values use
// the fallback; unparseable or out-of-range values are a validation error,
// never silently corrected. max <= 0 means no upper bound.
func queryIntRange(c *gin.Context, name string, fallback, min, max int) (int, bool) {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < min || (max > 0 && parsed > max) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return parsed, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}

type productCardResponse struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	SmallDescription string           `json:"small_description"`
	Price            float64          `json:"price"`
	Currency         string           `json:"currency"`
	InStock          bool             `json:"in_stock"`
	IsCertified      bool             `json:"is_certified"`
	CategoryName     string           `json:"category_name"`
	BrandName        *string          `json:"brand_name"`
	ImageURL         *string          `json:"image_url"`
	AverageRating    float64          `json:"average_rating"`
	ReviewsCount     int              `json:"reviews_count"`
	Features         []featureDTO     `json:"features"`
	Images           []imageDTO       `json:"images"`
}

type featureDTO struct {
	Name  string  `json:"name"`
	Text  string  `json:"text"`
	Value *string `json:"value"`
}

type imageDTO struct {
	Description string             `json:"description"`
	URLs        models.ImageURLSet `json:"urls"`
	IsMain      bool               `json:"is_main"`
}

type paginationResponse struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func (h HandlerSet) Catalog(c *gin.Context) {
	minPrice, ok := queryFloat(c, "min_price")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid min_price"})
		return
	}
	maxPrice, ok := queryFloat(c, "max_price")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid max_price"})
		return
	}
	isCertified, ok := queryBool(c, "is_certified")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid is_certified"})
		return
	}
	inStock, ok := queryBool(c, "in_stock")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid in_stock"})
		return
	}
	pageNum, ok := queryIntRange(c, "page", 1, 1, 0)
	if !ok {
		return
	}
	perPage, ok := queryIntRange(c, "per_page", 0, 1, 100)
	if !ok {
		return
	}

	page, err := h.catalog.List(c.Request.Context(), service.ListInput{
		Category:    queryString(c, "category"),
		Brand:       queryString(c, "brand"),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		IsCertified: isCertified,
		InStock:     inStock,
		Search:      queryString(c, "search"),
		SortBy:      c.Query("sort_by"),
		SortDesc:    c.Query("order") == "desc",
		Page:        pageNum,
		PerPage:     perPage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]productCardResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, cardResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"products": items,
		"pagination": paginationResponse{
			Page:       page.Pagination.Page,
			PerPage:    page.Pagination.PerPage,
			TotalCount: page.Pagination.TotalCount,
			TotalPages: page.Pagination.TotalPages,
			HasNext:    page.Pagination.HasNext,
			HasPrev:    page.Pagination.HasPrev,
		},
	})
}

func cardResponse(item service.ProductCard) productCardResponse {
	return productCardResponse{
		ID:               item.ID,
		Name:             item.Name,
		SmallDescription: item.SmallDescription,
		Price:            item.Price,
		Currency:         item.Currency,
		InStock:          item.InStock,
		IsCertified:      item.IsCertified,
		CategoryName:     item.CategoryName,
		BrandName:        item.BrandName,
		ImageURL:         item.ImageURL,
		AverageRating:    item.AverageRating,
		ReviewsCount:     item.ReviewsCount,
		Features:         featureDTOs(item.Features),
		Images:           imageDTOs(item.Images),
	}
}

func featureDTOs(features []models.Feature) []featureDTO {
	out := make([]featureDTO, 0, len(features))
	for _, f := range features {
		out = append(out, featureDTO{Name: f.Name, Text: f.Text, Value: f.Value})
	}
	return out
}

func imageDTOs(images []models.ProductImage) []imageDTO {
	out := make([]imageDTO, 0, len(images))
	for _, img := range images {
		out = append(out, imageDTO{Description: img.Description, URLs: img.URLs, IsMain: img.IsMain})
	}
	return out
}

func (h HandlerSet) Suggestions(c *gin.Context) {
	limit, ok := queryIntRange(c, "limit", 0, 1, 20)
	if !ok {
		return
	}

	items, err := h.catalog.Suggestions(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	type suggestionResponse struct {
		ProductID    int64   `json:"product_id"`
		Name         string  `json:"name"`
		CategoryName *string `json:"category_name"`
		BrandName    *string `json:"brand_name"`
	}
	out := make([]suggestionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, suggestionResponse{
			ProductID:    item.ProductID,
			Name:         item.Name,
			CategoryName: item.CategoryName,
			BrandName:    item.BrandName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

type compareRequest struct {
	ProductIDs []int64 `json:"product_ids" binding:"required"`
}

type comparisonResponse struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Price         float64      `json:"price"`
	Currency      string       `json:"currency"`
	InStock       bool         `json:"in_stock"`
	IsCertified   bool         `json:"is_certified"`
	BrandName     *string      `json:"brand_name"`
	ImageURL      *string      `json:"image_url"`
	AverageRating float64      `json:"average_rating"`
	ReviewsCount  int          `json:"reviews_count"`
	Features      []featureDTO `json:"features"`
}

func comparisonResponses(items []service.ComparisonItem) []comparisonResponse {
	out := make([]comparisonResponse, 0, len(items))
	for _, item := range items {
		out = append(out, comparisonResponse{
			ID:            item.ID,
			Name:          item.Name,
			Price:         item.Price,
			Currency:      item.Currency,
			InStock:       item.InStock,
			IsCertified:   item.IsCertified,
			BrandName:     item.BrandName,
			ImageURL:      item.ImageURL,
			AverageRating: item.AverageRating,
			ReviewsCount:  item.ReviewsCount,
			Features:      featureDTOs(item.Features),
		})
	}
	return out
}

func (h HandlerSet) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	items, err := h.catalog.Compare(c.Request.Context(), req.ProductIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": comparisonResponses(items)})
}

func (h HandlerSet) ProductDetail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.catalog.ProductDetail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	type reviewDTO struct {
		Rating       int     `json:"rating"`
		Text         string  `json:"text"`
		ReviewerName *string `json:"reviewer_name"`
	}
	reviews := make([]reviewDTO, 0, len(detail.Reviews))
	for _, r := range detail.Reviews {
		reviews = append(reviews, reviewDTO{Rating: r.Rating, Text: r.Text, ReviewerName: r.ReviewerName})
	}

	type variationDTO struct {
		ID            int64   `json:"id"`
		Type          string  `json:"type"`
		Value         string  `json:"value"`
		PriceModifier float64 `json:"price_modifier"`
		StockQuantity int     `json:"stock_quantity"`
	}
	variations := make([]variationDTO, 0, len(detail.Variations))
	for _, v := range detail.Variations {
		variations = append(variations, variationDTO{
			ID: v.ID, Type: v.Type, Value: v.Value,
			PriceModifier: v.PriceModifier, StockQuantity: v.StockQuantity,
		})
	}

	type traitDTO struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	traits := make([]traitDTO, 0, len(detail.Traits))
	for _, t := range detail.Traits {
		traits = append(traits, traitDTO{Name: t.Name, Text: t.Text})
	}

	p := detail.Product
	c.JSON(http.StatusOK, gin.H{
		"id":                 p.ID,
		"name":               p.Name,
		"description":        p.Description,
		"small_description":  p.SmallDescription,
		"price":              p.Price,
		"currency":           p.Currency,
		"availability":       p.Availability,
		"in_stock":           p.InStock,
		"stock_quantity":     p.StockQuantity,
		"is_certified":       p.IsCertified,
		"certification_info": p.CertificationInfo,
		"benefits":           p.Benefits,
		"usage_instructions": p.UsageInstructions,
		"category_name":      detail.CategoryName,
		"subcategory_name":   detail.SubcategoryName,
		"brand_name":         detail.BrandName,
		"average_rating":     detail.AverageRating,
		"reviews_count":      detail.ReviewsCount,
		"images":             imageDTOs(detail.Images),
		"features":           featureDTOs(detail.Features),
		"reviews":            reviews,
		"variations":         variations,
		"traits":             traits,
	})
}

func (h HandlerSet) Recommended(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	limit, ok := queryIntRange(c, "limit", 0, 1, 20)
	if !ok {
		return
	}

	items, err := h.catalog.Recommended(c.Request.Context(), id, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	type recommendationResponse struct {
		ID            int64   `json:"id"`
		Name          string  `json:"name"`
		Price         float64 `json:"price"`
		Currency      string  `json:"currency"`
		InStock       bool    `json:"in_stock"`
		ImageURL      *string `json:"image_url"`
		AverageRating float64 `json:"average_rating"`
		ReviewsCount  int     `json:"reviews_count"`
	}
	out := make([]recommendationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, recommendationResponse{
			ID:            item.ID,
			Name:          item.Name,
			Price:         item.Price,
			Currency:      item.Currency,
			InStock:       item.InStock,
			ImageURL:      item.ImageURL,
			AverageRating: item.AverageRating,
			ReviewsCount:  item.ReviewsCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"products": out})
}

func (h HandlerSet) VariationPrices(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	prices, err := h.catalog.VariationPrices(c.Request.Context(), id,
		queryString(c, "variation_type"), queryString(c, "variation_value"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	type priceResponse struct {
		VariationID   int64   `json:"variation_id"`
		Type          string  `json:"type"`
		Value         string  `json:"value"`
		PriceModifier float64 `json:"price_modifier"`
		FinalPrice    float64 `json:"final_price"`
		StockQuantity int     `json:"stock_quantity"`
	}
	out := make([]priceResponse, 0, len(prices))
	for _, price := range prices {
		out = append(out, priceResponse{
			VariationID:   price.VariationID,
			Type:          price.Type,
			Value:         price.Value,
			PriceModifier: price.PriceModifier,
			FinalPrice:    price.FinalPrice,
			StockQuantity: price.StockQuantity,
		})
	}

	c.JSON(http.StatusOK, gin.H{"prices": out})
}

func (h HandlerSet) Stats(c *gin.Context) {
	var filter repository.StatsFilter
	if value := c.Query("category_id"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid category_id"})
			return
		}
		filter.CategoryID = &id
	}
	if value := c.Query("brand_id"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid brand_id"})
			return
		}
		filter.BrandID = &id
	}

	stats, err := h.catalog.Stats(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	type groupStatResponse struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Count    int     `json:"count"`
		AvgPrice float64 `json:"avg_price"`
	}
	groups := func(stats []repository.GroupStat) []groupStatResponse {
		out := make([]groupStatResponse, 0, len(stats))
		for _, s := range stats {
			out = append(out, groupStatResponse{ID: s.ID, Name: s.Name, Count: s.Count, AvgPrice: s.AvgPrice})
		}
		return out
	}

	c.JSON(http.StatusOK, gin.H{
		"total_products": stats.TotalProducts,
		"in_stock":       stats.InStock,
		"out_of_stock":   stats.OutOfStock,
		"average_price":  stats.AveragePrice,
		"per_category":   groups(stats.PerCategory),
		"per_brand":      groups(stats.PerBrand),
	})
}

type importImageRequest struct {
	ID          int64  `json:"id" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
	IsMain      bool   `json:"is_main"`
	SortOrder   int    `json:"sort_order"`
}

type importProductRequest struct {
	ID                int64   `json:"id" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	Description       string  `json:"description"`
	Price             float64 `json:"price"`
	Currency          string  `json:"currency"`
	Availability      bool    `json:"availability"`
	InStock           bool    `json:"in_stock"`
	StockQuantity     int     `json:"stock_quantity"`
	IsCertified       bool    `json:"is_certified"`
	CertificationInfo *string `json:"certification_info"`
	Benefits          *string `json:"benefits"`
	UsageInstructions *string `json:"usage_instructions"`
	Category          struct {
		ID          int64  `json:"id" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	} `json:"category" binding:"required"`
	Subcategory struct {
		ID          int64  `json:"id" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	} `json:"subcategory" binding:"required"`
	Brand struct {
		ID          int64   `json:"id" binding:"required"`
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		LogoURL     *string `json:"logo_url"`
	} `json:"brand" binding:"required"`
	Images []importImageRequest `json:"images"`
}

func (h HandlerSet) Import(c *gin.Context) {
	var req []importProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	batch := make([]repository.ImportProduct, 0, len(req))
	for _, item := range req {
		images := make([]repository.ImportImage, 0, len(item.Images))
		for _, img := range item.Images {
			images = append(images, repository.ImportImage{
				ID:          img.ID,
				URL:         img.URL,
				Description: img.Description,
				IsMain:      img.IsMain,
				SortOrder:   img.SortOrder,
			})
		}
		batch = append(batch, repository.ImportProduct{
			ID:                item.ID,
			Name:              item.Name,
			Description:       item.Description,
			Price:             item.Price,
			Currency:          item.Currency,
			Availability:      item.Availability,
			InStock:           item.InStock,
			StockQuantity:     item.StockQuantity,
			IsCertified:       item.IsCertified,
			CertificationInfo: item.CertificationInfo,
			Benefits:          item.Benefits,
			UsageInstructions: item.UsageInstructions,
			Category: repository.ImportCategory{
				ID: item.Category.ID, Name: item.Category.Name, Description: item.Category.Description,
			},
			Subcategory: repository.ImportSubcategory{
				ID: item.Subcategory.ID, Name: item.Subcategory.Name, Description: item.Subcategory.Description,
			},
			Brand: repository.ImportBrand{
				ID: item.Brand.ID, Name: item.Brand.Name, Description: item.Brand.Description, LogoURL: item.Brand.LogoURL,
			},
			Images: images,
		})
	}

	items, err := h.catalog.Import(c.Request.Context(), batch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"imported": len(items),
		"products": comparisonResponses(items),
	})
}

type subscribeRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

func (h HandlerSet) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.Subscribe(c.Request.Context(), req.ProductID, req.Email); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}
