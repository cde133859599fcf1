package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          int64
	Name        string
	Description string
}

type Subcategory struct {
	ID          int64
	Name        string
	Description string
	CategoryID  int64
}

type Brand struct {
	ID          int64
	Name        string
	Description string
	LogoURL     *string
}

type Product struct {
	ID                int64
	Name              string
	Description       string
	SmallDescription  string
	Price             float64
	Currency          string
	Availability      bool
	InStock           bool
	StockQuantity     int
	IsCertified       bool
	CertificationInfo *string
	Benefits          *string
	UsageInstructions *string
	MainImageURL      *string
	CategoryID        int64
	SubcategoryID     int64
	BrandID           *int64
	CreatedAt         time.Time
}

// ImageURLSet is stored as JSONB, one URL per rendition.
type ImageURLSet struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type ProductImage struct {
	ID          int64
	ProductID   int64
	Description string
	URLs        ImageURLSet
	IsMain      bool
	SortOrder   int
}

type Feature struct {
	ID        int64
	ProductID int64
	Name      string
	Text      string
	Value     *string
}

type Review struct {
	ID           int64
	ProductID    int64
	Rating       int
	Text         string
	ReviewerName *string
	UserID       *uuid.UUID
	CreatedAt    time.Time
}

type ProductVariation struct {
	ID            int64
	ProductID     int64
	Type          string
	Value         string
	PriceModifier float64
	StockQuantity int
}

type Trait struct {
	ID        int64
	ProductID int64
	Name      string
	Text      string
}

type ProductSubscription struct {
	ID         int64
	ProductID  int64
	Email      string
	IsNotified bool
	CreatedAt  time.Time
}
