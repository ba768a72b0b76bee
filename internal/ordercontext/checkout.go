package ordercontext

import (
	"strings"

	"github.com/shopspring/decimal"

	"storefront-bff/internal/models"
	"storefront-bff/internal/validation"
)

// FromCheckout builds the order context for a validated checkout form.
// delivery falls back to billing when nil. Only brand and last four digits
// of the card survive.
func FromCheckout(req models.CheckoutRequest, delivery *models.Address, freight models.FreightSelection) models.OrderContext {
	oc := models.OrderContext{
		Status: StatusPendingApproval,
		Customer: models.Customer{
			Name:         strings.TrimSpace(req.Customer.Name),
			Document:     validation.FormatDocument(req.Customer.Document),
			DocumentKind: validation.DocumentKind(req.Customer.Document),
			Email:        strings.TrimSpace(req.Customer.Email),
			Phone:        validation.FormatPhone(req.Customer.Phone),
		},
		Billing: normalizeAddress(req.Billing),
		Payment: models.Payment{
			Method:       req.Payment.Method,
			Installments: max(req.Payment.Installments, 1),
		},
		Freight: freight,
	}
	oc.StatusLabel = StatusLabel(oc.Status)

	if req.Payment.Method == models.PaymentCreditCard {
		oc.Payment.CardBrand = validation.CardBrand(req.Payment.CardNumber)
		oc.Payment.CardMasked = validation.MaskCard(req.Payment.CardNumber)
	} else {
		oc.Payment.Installments = 1
	}

	if delivery != nil && !delivery.IsZero() {
		oc.Delivery = normalizeAddress(*delivery)
	} else {
		oc.Delivery = oc.Billing
	}
	if oc.Delivery.Recipient == "" {
		oc.Delivery.Recipient = oc.Customer.Name
	}
	oc.Freight.CEP = oc.Delivery.CEP

	total := decimal.Zero
	oc.Items = make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		sub := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(sub)
		oc.Items = append(oc.Items, models.OrderItem{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  sub,
		})
	}
	oc.ItemsTotal = total
	oc.Total = total.Add(freight.Value)
	return oc
}

func normalizeAddress(a models.Address) models.Address {
	a.CEP = validation.FormatCEP(strings.TrimSpace(a.CEP))
	a.Street = strings.TrimSpace(a.Street)
	a.Number = strings.TrimSpace(a.Number)
	a.Complement = strings.TrimSpace(a.Complement)
	a.District = strings.TrimSpace(a.District)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.Recipient = strings.TrimSpace(a.Recipient)
	return a
}
