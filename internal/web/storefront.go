package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
	"storefront-bff/internal/storefront"
	"storefront-bff/internal/validation"
)

const maxCartLines = 50

type catalogData struct {
	Query    string
	Category string
	Page     *models.ProductPage
	NextPage int
	PrevPage int
}

func (p *Pages) Catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNum, _ := strconv.Atoi(q.Get("page"))

	res, err := p.sf.Products(r.Context(), models.ProductQuery{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Page:     pageNum,
	})
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	data := catalogData{Query: q.Get("q"), Category: q.Get("category"), Page: res}
	if res.Page > 1 {
		data.PrevPage = res.Page - 1
	}
	if res.Page*res.PageSize < res.Total {
		data.NextPage = res.Page + 1
	}
	p.render(w, http.StatusOK, "catalog", page{Title: "Catalog", Data: data})
}

type productData struct {
	Product *models.Product
	CEP     string
	Quote   *storefront.FreightQuote
}

// Product shows a product and, when ?cep= is given, its freight options.
func (p *Pages) Product(w http.ResponseWriter, r *http.Request) {
	prod, err := p.sf.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	pg := page{Title: prod.Name}
	data := productData{Product: prod, CEP: r.URL.Query().Get("cep")}
	if data.CEP == "" {
		if addr, ok := p.sessions.Address(r); ok {
			data.CEP = addr.CEP
		}
	}

	if data.CEP != "" {
		q, err := p.sf.QuoteFreight(r.Context(), data.CEP, []freight.Item{storefront.ItemFor(*prod, 1)})
		var fields validation.FieldErrors
		switch {
		case err == nil:
			data.Quote = q
		case errors.As(err, &fields):
			pg.Errors = fields
		default:
			pg.Notice = "Freight quote unavailable right now."
		}
	}

	pg.Data = data
	p.render(w, http.StatusOK, "product", pg)
}

type cartLine struct {
	Product  models.Product
	Quantity int
}

type checkoutData struct {
	Lines          []cartLine
	Form           models.CheckoutRequest
	Delivery       models.Address
	Freight        *models.FreightSelection
	Options        []models.FreightOption
	IdempotencyKey string
}

// loadCart resolves product ids and quantities against the catalog so
// prices always come from the backend.
func (p *Pages) loadCart(r *http.Request, ids, qtys []string) ([]cartLine, error) {
	lines := make([]cartLine, 0, len(ids))
	for i, id := range ids {
		if i >= maxCartLines {
			break
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		qty := 1
		if i < len(qtys) {
			if n, err := strconv.Atoi(qtys[i]); err == nil && n > 0 {
				qty = n
			}
		}
		prod, err := p.sf.Product(r.Context(), id)
		if err != nil {
			return nil, err
		}
		lines = append(lines, cartLine{Product: *prod, Quantity: qty})
	}
	return lines, nil
}

func freightItems(lines []cartLine) []freight.Item {
	items := make([]freight.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, storefront.ItemFor(l.Product, l.Quantity))
	}
	return items
}

// CheckoutForm renders the checkout for ?product=&qty= pairs, prefilled
// from the session cookies.
func (p *Pages) CheckoutForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lines, err := p.loadCart(r, q["product"], q["qty"])
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	data := checkoutData{Lines: lines, IdempotencyKey: uuid.NewString()}
	if addr, ok := p.sessions.Address(r); ok {
		data.Delivery = addr
	}
	if f, ok := p.sessions.Freight(r); ok {
		data.Freight = &f
	}
	if data.Delivery.CEP != "" && len(lines) > 0 {
		if quote, err := p.sf.QuoteFreight(r.Context(), data.Delivery.CEP, freightItems(lines)); err == nil {
			data.Options = quote.Options
		}
	}

	p.render(w, http.StatusOK, "checkout", page{Title: "Checkout", Data: data})
}

// CheckoutSubmit places the order from the form and renders either the
// confirmation or the form again with field errors.
func (p *Pages) CheckoutSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f := r.PostForm

	lines, err := p.loadCart(r, f["product"], f["qty"])
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	req := checkoutFromForm(r)
	for _, l := range lines {
		req.Items = append(req.Items, models.CheckoutItem{
			SKU:       l.Product.SKU,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.Price,
		})
	}

	var cookieAddr *models.Address
	if a, ok := p.sessions.Address(r); ok {
		cookieAddr = &a
	}
	var cookieFreight *models.FreightSelection
	if fr, ok := p.sessions.Freight(r); ok {
		cookieFreight = &fr
	}

	data := checkoutData{Lines: lines, Form: req, Freight: cookieFreight, IdempotencyKey: f.Get("idempotency_key")}
	if cookieAddr != nil {
		data.Delivery = *cookieAddr
	}
	if req.Delivery != nil {
		data.Delivery = *req.Delivery
	}

	// Only the service name comes from the form; Checkout prices it.
	cep := req.Billing.CEP
	if data.Delivery.CEP != "" {
		cep = data.Delivery.CEP
	}
	if service := strings.TrimSpace(f.Get("freight_service")); service != "" {
		req.Freight = &models.FreightSelection{Service: service, CEP: validation.FormatCEP(cep)}
	}
	if len(lines) > 0 && validation.IsCEP(cep) {
		if quote, err := p.sf.QuoteFreight(r.Context(), cep, freightItems(lines)); err == nil {
			data.Options = quote.Options
		}
	}

	oc, err := p.sf.Checkout(r.Context(), req, cookieAddr, cookieFreight, data.IdempotencyKey)
	if err != nil {
		var fields validation.FieldErrors
		if !errors.As(err, &fields) {
			p.renderError(w, r, err)
			return
		}
		p.render(w, http.StatusUnprocessableEntity, "checkout", page{Title: "Checkout", Data: data, Errors: fields})
		return
	}

	p.sessions.ClearFreight(w)
	p.render(w, http.StatusOK, "confirmation", page{Title: "Order received", Data: oc})
}

func checkoutFromForm(r *http.Request) models.CheckoutRequest {
	v := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }
	installments, _ := strconv.Atoi(v("installments"))

	req := models.CheckoutRequest{
		Customer: models.CheckoutCustomer{
			Name:     v("name"),
			Document: v("document"),
			Email:    v("email"),
			Phone:    v("phone"),
		},
		Billing: addressFromForm(v, "billing_"),
		Payment: models.CheckoutPayment{
			Method:       v("payment_method"),
			Installments: installments,
			CardNumber:   v("card_number"),
			CardHolder:   v("card_holder"),
			CardExpiry:   v("card_expiry"),
			CardCVV:      v("card_cvv"),
		},
	}

	if delivery := addressFromForm(v, "delivery_"); !delivery.IsZero() {
		req.Delivery = &delivery
	}
	return req
}

func addressFromForm(v func(string) string, prefix string) models.Address {
	return models.Address{
		CEP:        v(prefix + "cep"),
		Street:     v(prefix + "street"),
		Number:     v(prefix + "number"),
		Complement: v(prefix + "complement"),
		District:   v(prefix + "district"),
		City:       v(prefix + "city"),
		State:      v(prefix + "state"),
		Recipient:  v(prefix + "recipient"),
	}
}
