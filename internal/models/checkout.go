package models

import "github.com/shopspring/decimal"

const (
	PaymentCreditCard = "credit_card"
	PaymentPix        = "pix"
	PaymentBoleto     = "boleto"
)

// CheckoutRequest is the checkout form, posted as JSON or built from a form.
// Delivery and Freight fall back to the session cookies when absent.
type CheckoutRequest struct {
	Customer CheckoutCustomer  `json:"customer"`
	Billing  Address           `json:"billing"`
	Delivery *Address          `json:"delivery,omitempty"`
	Payment  CheckoutPayment   `json:"payment"`
	Items    []CheckoutItem    `json:"items" validate:"required,min=1,max=50,dive"`
	Freight  *FreightSelection `json:"freight,omitempty"`
}

type CheckoutCustomer struct {
	Name     string `json:"name" validate:"required,min=3,max=120"`
	Document string `json:"document" validate:"required,document"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone_br"`
}

type CheckoutPayment struct {
	Method       string `json:"method" validate:"required,oneof=credit_card pix boleto"`
	Installments int    `json:"installments,omitempty" validate:"omitempty,min=1,max=12"`
	CardNumber   string `json:"card_number,omitempty"`
	CardHolder   string `json:"card_holder,omitempty"`
	CardExpiry   string `json:"card_expiry,omitempty"`
	CardCVV      string `json:"card_cvv,omitempty"`
}

type CheckoutItem struct {
	SKU       string          `json:"sku" validate:"required"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity" validate:"required,min=1,max=999"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
