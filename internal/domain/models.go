package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleType string

const (
	SaleTypeCash   SaleType = "CASH"
	SaleTypeCredit SaleType = "CREDIT"
)

func (t SaleType) Valid() bool {
	return t == SaleTypeCash || t == SaleTypeCredit
}

const (
	RoleStore = "store"
	RoleAdmin = "admin"
)

type Actor struct {
	Subject string `json:"subject"`
	StoreID string `json:"storeId"`
	Role    string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Store struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Product struct {
	ID        string          `json:"id"`
	StoreID   string          `json:"storeId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Shop struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId"`
	Name          string          `json:"name"`
	Address       string          `json:"address"`
	Phone         string          `json:"phone"`
	FirstSaleDate *time.Time      `json:"firstSaleDate"`
	CashPaid      decimal.Decimal `json:"cashPaid"`
	Credit        decimal.Decimal `json:"credit"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Salesman struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"storeId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type SaleItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LineTotal is the undiscounted amount of the item.
func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID           string          `json:"id"`
	StoreID      string          `json:"storeId"`
	ShopID       string          `json:"shopId"`
	ShopName     string          `json:"shopName,omitempty"`
	SalesmanID   string          `json:"salesmanId"`
	SalesmanName string          `json:"salesmanName,omitempty"`
	SaleTime     time.Time       `json:"saleTime"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	SaleType     SaleType        `json:"saleType"`
	Items        []SaleItem      `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (s Sale) Gross() decimal.Decimal {
	gross := decimal.Zero
	for _, item := range s.Items {
		gross = gross.Add(item.LineTotal())
	}
	return gross
}

func (s Sale) Units() int {
	units := 0
	for _, item := range s.Items {
		units += item.Quantity
	}
	return units
}

type SaleFilter struct {
	StoreID    string
	ShopID     string
	SalesmanID string
	From       *time.Time
	To         *time.Time
}

// Requests

type LoginRequest struct {
	StoreID  string `json:"storeId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	StoreID     string `json:"storeId"`
	ExpiresAt   string `json:"expiresAt"`
}

type AdminUnlockRequest struct {
	Password string `json:"password" validate:"required"`
}

type StoreCreateRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Address  string `json:"address" validate:"max=255"`
}

type ShopCreateRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=255"`
	Phone   string `json:"phone" validate:"max=40"`
}

type ShopUpdateRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Address        *string          `json:"address" validate:"omitempty,max=255"`
	Phone          *string          `json:"phone" validate:"omitempty,max=40"`
	CreditDecrease *decimal.Decimal `json:"creditDecrease" validate:"omitempty,gt=0"`
}

type SalesmanRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type ProductCreateRequest struct {
	Name  string          `json:"name" validate:"required,max=120"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
	Stock int             `json:"stock" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	StockChange *int             `json:"stockChange" validate:"omitempty,gt=0"`
}

type SaleItemInput struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

type SaleCreateRequest struct {
	StoreID    string           `json:"-"`
	ShopID     string           `json:"shopId" validate:"required"`
	SalesmanID string           `json:"salesmanId" validate:"required"`
	Items      []SaleItemInput  `json:"items" validate:"required,min=1,dive"`
	Discount   *decimal.Decimal `json:"discount" validate:"omitempty,gte=0,lte=100"`
	SaleTime   *time.Time       `json:"saleTime"`
	SaleType   SaleType         `json:"saleType" validate:"omitempty,oneof=CASH CREDIT"`
}

type SaleEditRequest struct {
	ShopID     *string          `json:"shopId" validate:"omitempty,min=1"`
	SalesmanID *string          `json:"salesmanId" validate:"omitempty,min=1"`
	Items      []SaleItemInput  `json:"items" validate:"required,min=1,dive"`
	Discount   *decimal.Decimal `json:"discount" validate:"omitempty,gte=0,lte=100"`
	SaleType   *SaleType        `json:"saleType" validate:"omitempty,oneof=CASH CREDIT"`
}

// Reports

type SalesReport struct {
	StoreID        string          `json:"storeId"`
	From           *time.Time      `json:"from"`
	To             *time.Time      `json:"to"`
	SaleCount      int             `json:"saleCount"`
	UnitsSold      int             `json:"unitsSold"`
	Gross          decimal.Decimal `json:"gross"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Net            decimal.Decimal `json:"net"`
	CashTotal      decimal.Decimal `json:"cashTotal"`
	CreditTotal    decimal.Decimal `json:"creditTotal"`
	Sales          []Sale          `json:"sales"`
}

type ShopSalesRow struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	FirstSaleDate *time.Time      `json:"firstSaleDate"`
	CashPaid      decimal.Decimal `json:"cashPaid"`
	Credit        decimal.Decimal `json:"credit"`
	UnitsSold     int             `json:"unitsSold"`
	AmountMade    decimal.Decimal `json:"amountMade"`
	MostSoldItem  *string         `json:"mostSoldItem"`
}

type ProductSalesRow struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"unitsSold"`
	Revenue   decimal.Decimal `json:"revenue"`
	SaleCount int             `json:"saleCount"`
}

type SalesmanSalesRow struct {
	SalesmanID  string          `json:"salesmanId"`
	Name        string          `json:"name"`
	SaleCount   int             `json:"saleCount"`
	UnitsSold   int             `json:"unitsSold"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
