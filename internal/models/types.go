package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string           `json:"id"`
	SKU         string           `json:"sku"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	Brand       string           `json:"brand,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	OldPrice    *decimal.Decimal `json:"old_price,omitempty"`
	Stock       int              `json:"stock"`
	Height      float64          `json:"height"`
	Width       float64          `json:"width"`
	Length      float64          `json:"length"`
	Weight      float64          `json:"weight"`
}

type ProductQuery struct {
	Search   string
	Category string
	Page     int
	PageSize int
}

type ProductPage struct {
	Items    []Product `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type Address struct {
	CEP        string `json:"cep" validate:"required,cep"`
	Street     string `json:"street" validate:"required,max=120"`
	Number     string `json:"number" validate:"required,max=10"`
	Complement string `json:"complement,omitempty" validate:"max=60"`
	District   string `json:"district" validate:"required,max=60"`
	City       string `json:"city" validate:"required,max=60"`
	State      string `json:"state" validate:"required,len=2"`
	Recipient  string `json:"recipient,omitempty" validate:"max=80"`
}

func (a Address) IsZero() bool {
	return a.CEP == "" && a.Street == ""
}

type FreightQuoteRequest struct {
	OriginCEP      string          `json:"origin_cep,omitempty"`
	DestinationCEP string          `json:"destination_cep"`
	Height         int             `json:"height"`
	Width          int             `json:"width"`
	Length         int             `json:"length"`
	Weight         float64         `json:"weight"`
	DeclaredValue  decimal.Decimal `json:"declared_value"`
}

type FreightOption struct {
	Service string          `json:"service"`
	Carrier string          `json:"carrier,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Days    int             `json:"days"`
}

// FreightSelection is the freight choice kept in the freight cookie.
type FreightSelection struct {
	Service string          `json:"service"`
	CEP     string          `json:"cep"`
	Value   decimal.Decimal `json:"value"`
	Days    int             `json:"days,omitempty"`
}

// OrderRecord is the backend's flat order record. Optional fields are pointers.
type OrderRecord struct {
	ID        string     `json:"id,omitempty"`
	Number    *string    `json:"number,omitempty"`
	Status    string     `json:"status,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`

	BuyerName     string  `json:"buyer_name"`
	BuyerDocument string  `json:"buyer_document"`
	BuyerEmail    *string `json:"buyer_email,omitempty"`
	BuyerPhone    *string `json:"buyer_phone,omitempty"`

	BillingCEP        *string `json:"billing_cep,omitempty"`
	BillingStreet     *string `json:"billing_street,omitempty"`
	BillingNumber     *string `json:"billing_number,omitempty"`
	BillingComplement *string `json:"billing_complement,omitempty"`
	BillingDistrict   *string `json:"billing_district,omitempty"`
	BillingCity       *string `json:"billing_city,omitempty"`
	BillingState      *string `json:"billing_state,omitempty"`

	DeliveryRecipient  *string `json:"delivery_recipient,omitempty"`
	DeliveryCEP        *string `json:"delivery_cep,omitempty"`
	DeliveryStreet     *string `json:"delivery_street,omitempty"`
	DeliveryNumber     *string `json:"delivery_number,omitempty"`
	DeliveryComplement *string `json:"delivery_complement,omitempty"`
	DeliveryDistrict   *string `json:"delivery_district,omitempty"`
	DeliveryCity       *string `json:"delivery_city,omitempty"`
	DeliveryState      *string `json:"delivery_state,omitempty"`

	PaymentMethod       *string `json:"payment_method,omitempty"`
	PaymentInstallments *int    `json:"payment_installments,omitempty"`
	PaymentCardBrand    *string `json:"payment_card_brand,omitempty"`
	PaymentCardLast4    *string `json:"payment_card_last4,omitempty"`

	FreightService *string          `json:"freight_service,omitempty"`
	FreightValue   *decimal.Decimal `json:"freight_value,omitempty"`
	ItemsTotal     *decimal.Decimal `json:"items_total,omitempty"`
	Total          *decimal.Decimal `json:"total,omitempty"`

	Items []OrderItemRecord `json:"items"`
}

type OrderItemRecord struct {
	SKU       string          `json:"sku"`
	Name      *string         `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Customer struct {
	Name         string `json:"name"`
	Document     string `json:"document"`
	DocumentKind string `json:"document_kind"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type Payment struct {
	Method       string `json:"method"`
	Installments int    `json:"installments"`
	CardBrand    string `json:"card_brand,omitempty"`
	CardMasked   string `json:"card_masked,omitempty"`
}

type OrderItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderContext is the order shape used by pages and the public API.
type OrderContext struct {
	OrderID     string           `json:"order_id"`
	Number      string           `json:"number,omitempty"`
	Status      string           `json:"status"`
	StatusLabel string           `json:"status_label"`
	PlacedAt    time.Time        `json:"placed_at"`
	Customer    Customer         `json:"customer"`
	Billing     Address          `json:"billing"`
	Delivery    Address          `json:"delivery"`
	Payment     Payment          `json:"payment"`
	Freight     FreightSelection `json:"freight"`
	Items       []OrderItem      `json:"items"`
	ItemsTotal  decimal.Decimal  `json:"items_total"`
	Total       decimal.Decimal  `json:"total"`
}

type OrderFilter struct {
	Status string
	Page   int
}

type OrderList struct {
	Items []OrderRecord `json:"items"`
	Total int           `json:"total"`
}

type SalesReport struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	OrdersCount int             `json:"orders_count"`
	Revenue     decimal.Decimal `json:"revenue"`
	AvgTicket   decimal.Decimal `json:"avg_ticket"`
	ByStatus    map[string]int  `json:"by_status"`
	ByDay       []SalesDay      `json:"by_day,omitempty"`
	TopProducts []SalesProduct  `json:"top_products,omitempty"`
}

type SalesDay struct {
	Date    string          `json:"date"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type SalesProduct struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Approval is one audit entry for an admin decision on an order.
type Approval struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type DashboardResponse struct {
	PendingOrders   []OrderRecord `json:"pending_orders"`
	Sales           *SalesReport  `json:"sales"`
	RecentApprovals []Approval    `json:"recent_approvals"`
}
