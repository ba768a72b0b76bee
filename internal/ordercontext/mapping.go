// Package ordercontext converts between the backend's flat order record and
// the order context rendered by the storefront.
package ordercontext

import (
	"strings"

	"github.com/shopspring/decimal"

	"storefront-bff/internal/models"
	"storefront-bff/internal/validation"
)

const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusCancelled       = "cancelled"
	StatusInvoiced        = "invoiced"
	StatusShipped         = "shipped"
	StatusDelivered       = "delivered"
)

var statusLabels = map[string]string{
	StatusPendingApproval: "Awaiting approval",
	StatusApproved:        "Approved",
	StatusRejected:        "Rejected",
	StatusCancelled:       "Cancelled",
	StatusInvoiced:        "Invoiced",
	StatusShipped:         "Shipped",
	StatusDelivered:       "Delivered",
}

func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

// FromRecord maps a backend record into an order context.
func FromRecord(rec models.OrderRecord) models.OrderContext {
	oc := models.OrderContext{
		OrderID:     rec.ID,
		Number:      str(rec.Number),
		Status:      rec.Status,
		StatusLabel: StatusLabel(rec.Status),
		Customer: models.Customer{
			Name:         rec.BuyerName,
			Document:     validation.FormatDocument(rec.BuyerDocument),
			DocumentKind: validation.DocumentKind(rec.BuyerDocument),
			Email:        str(rec.BuyerEmail),
			Phone:        validation.FormatPhone(str(rec.BuyerPhone)),
		},
		Billing: models.Address{
			CEP:        validation.FormatCEP(str(rec.BillingCEP)),
			Street:     str(rec.BillingStreet),
			Number:     str(rec.BillingNumber),
			Complement: str(rec.BillingComplement),
			District:   str(rec.BillingDistrict),
			City:       str(rec.BillingCity),
			State:      str(rec.BillingState),
		},
		Delivery: models.Address{
			Recipient:  str(rec.DeliveryRecipient),
			CEP:        validation.FormatCEP(str(rec.DeliveryCEP)),
			Street:     str(rec.DeliveryStreet),
			Number:     str(rec.DeliveryNumber),
			Complement: str(rec.DeliveryComplement),
			District:   str(rec.DeliveryDistrict),
			City:       str(rec.DeliveryCity),
			State:      str(rec.DeliveryState),
		},
		Payment: models.Payment{
			Method:       str(rec.PaymentMethod),
			Installments: 1,
			CardBrand:    str(rec.PaymentCardBrand),
		},
		Freight: models.FreightSelection{
			Service: str(rec.FreightService),
			Value:   dec(rec.FreightValue),
		},
	}

	if rec.CreatedAt != nil {
		oc.PlacedAt = *rec.CreatedAt
	}
	if rec.PaymentInstallments != nil && *rec.PaymentInstallments > 0 {
		oc.Payment.Installments = *rec.PaymentInstallments
	}
	if last4 := str(rec.PaymentCardLast4); last4 != "" {
		oc.Payment.CardMasked = validation.MaskCard(last4)
	}

	if oc.Delivery.Street == "" && oc.Delivery.CEP == "" {
		recipient := oc.Delivery.Recipient
		oc.Delivery = oc.Billing
		oc.Delivery.Recipient = recipient
	}
	if oc.Delivery.Recipient == "" {
		oc.Delivery.Recipient = oc.Customer.Name
	}
	oc.Freight.CEP = oc.Delivery.CEP

	itemsTotal := decimal.Zero
	oc.Items = make([]models.OrderItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		sub := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		itemsTotal = itemsTotal.Add(sub)
		oc.Items = append(oc.Items, models.OrderItem{
			SKU:       it.SKU,
			Name:      str(it.Name),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  sub,
		})
	}

	oc.ItemsTotal = itemsTotal
	if rec.ItemsTotal != nil {
		oc.ItemsTotal = *rec.ItemsTotal
	}
	oc.Total = oc.ItemsTotal.Add(oc.Freight.Value)
	if rec.Total != nil {
		oc.Total = *rec.Total
	}
	return oc
}

// ToRecord maps an order context back into the backend record. Masks are
// stripped; empty optional fields are omitted.
func ToRecord(oc models.OrderContext) models.OrderRecord {
	rec := models.OrderRecord{
		ID:     oc.OrderID,
		Number: ptr(oc.Number),
		Status: oc.Status,

		BuyerName:     strings.TrimSpace(oc.Customer.Name),
		BuyerDocument: validation.OnlyDigits(oc.Customer.Document),
		BuyerEmail:    ptr(strings.TrimSpace(oc.Customer.Email)),
		BuyerPhone:    ptr(validation.OnlyDigits(oc.Customer.Phone)),

		BillingCEP:        ptr(validation.OnlyDigits(oc.Billing.CEP)),
		BillingStreet:     ptr(oc.Billing.Street),
		BillingNumber:     ptr(oc.Billing.Number),
		BillingComplement: ptr(oc.Billing.Complement),
		BillingDistrict:   ptr(oc.Billing.District),
		BillingCity:       ptr(oc.Billing.City),
		BillingState:      ptr(strings.ToUpper(oc.Billing.State)),

		DeliveryRecipient:  ptr(oc.Delivery.Recipient),
		DeliveryCEP:        ptr(validation.OnlyDigits(oc.Delivery.CEP)),
		DeliveryStreet:     ptr(oc.Delivery.Street),
		DeliveryNumber:     ptr(oc.Delivery.Number),
		DeliveryComplement: ptr(oc.Delivery.Complement),
		DeliveryDistrict:   ptr(oc.Delivery.District),
		DeliveryCity:       ptr(oc.Delivery.City),
		DeliveryState:      ptr(strings.ToUpper(oc.Delivery.State)),

		PaymentMethod:    ptr(oc.Payment.Method),
		PaymentCardBrand: ptr(oc.Payment.CardBrand),
		PaymentCardLast4: ptr(validation.LastFour(oc.Payment.CardMasked)),

		FreightService: ptr(oc.Freight.Service),
	}

	if !oc.PlacedAt.IsZero() {
		t := oc.PlacedAt
		rec.CreatedAt = &t
	}
	if oc.Payment.Installments > 0 {
		n := oc.Payment.Installments
		rec.PaymentInstallments = &n
	}

	itemsTotal := decimal.Zero
	rec.Items = make([]models.OrderItemRecord, 0, len(oc.Items))
	for _, it := range oc.Items {
		itemsTotal = itemsTotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		rec.Items = append(rec.Items, models.OrderItemRecord{
			SKU:       it.SKU,
			Name:      ptr(it.Name),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	freight := oc.Freight.Value
	total := itemsTotal.Add(freight)
	rec.FreightValue = &freight
	rec.ItemsTotal = &itemsTotal
	rec.Total = &total
	return rec
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dec(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}
