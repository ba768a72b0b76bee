package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-bff/internal/cache"
	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
	"storefront-bff/internal/validation"
)

const maxPageSize = 100

func (s *Storefront) Products(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		q.PageSize = 24
	}

	return cached(ctx, s, "products", cache.ProductsKey(q), s.opts.ProductsTTL, func() (*models.ProductPage, error) {
		return s.backend.ListProducts(ctx, q)
	})
}

func (s *Storefront) Product(ctx context.Context, id string) (*models.Product, error) {
	return cached(ctx, s, "product", cache.ProductKey(id), s.opts.ProductsTTL, func() (*models.Product, error) {
		return s.backend.GetProduct(ctx, id)
	})
}

// LookupCEP validates the code before asking the backend.
func (s *Storefront) LookupCEP(ctx context.Context, cep string) (*models.Address, error) {
	if !validation.IsCEP(cep) {
		return nil, validation.FieldErrors{"cep": "invalid CEP"}
	}
	return cached(ctx, s, "cep", cache.CEPKey(cep), s.opts.CEPTTL, func() (*models.Address, error) {
		return s.backend.LookupCEP(ctx, cep)
	})
}

type ValidateResult struct {
	Kind      string `json:"kind"`
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted,omitempty"`
	Brand     string `json:"brand,omitempty"`
}

// Validate checks a single form value. Supported kinds: document, cpf,
// cnpj, cep, phone, card.
func (s *Storefront) Validate(kind, value string) (ValidateResult, error) {
	res := ValidateResult{Kind: kind}
	switch kind {
	case "document":
		res.Valid = validation.IsDocument(value)
		if res.Valid {
			res.Kind = validation.DocumentKind(value)
			res.Formatted = validation.FormatDocument(value)
		}
	case validation.KindCPF:
		res.Valid = validation.IsCPF(value)
		if res.Valid {
			res.Formatted = validation.FormatCPF(value)
		}
	case validation.KindCNPJ:
		res.Valid = validation.IsCNPJ(value)
		if res.Valid {
			res.Formatted = validation.FormatCNPJ(value)
		}
	case "cep":
		res.Valid = validation.IsCEP(value)
		if res.Valid {
			res.Formatted = validation.FormatCEP(value)
		}
	case "phone":
		res.Valid = validation.IsPhone(value)
		if res.Valid {
			res.Formatted = validation.FormatPhone(value)
		}
	case "card":
		res.Valid = validation.IsCardNumber(value)
		res.Brand = validation.CardBrand(value)
		if res.Valid {
			res.Formatted = validation.MaskCard(value)
		}
	default:
		return res, validation.FieldErrors{"kind": "unsupported kind"}
	}
	return res, nil
}

type FreightQuote struct {
	Package freight.Package        `json:"package"`
	Options []models.FreightOption `json:"options"`
}

// MountPackage checks items and mounts their package.
func (s *Storefront) MountPackage(items []freight.Item) (freight.Package, error) {
	if len(items) == 0 {
		return freight.Package{}, validation.FieldErrors{"items": "is required"}
	}
	if err := freight.Check(items); err != nil {
		var ie *freight.ItemError
		if errors.As(err, &ie) {
			return freight.Package{}, validation.FieldErrors{fmt.Sprintf("items[%d].%s", ie.Index, ie.Field): "is out of range"}
		}
		return freight.Package{}, err
	}
	return freight.Mount(items), nil
}

// ItemFor describes qty units of prod for the package calculator.
func ItemFor(prod models.Product, qty int) freight.Item {
	return freight.Item{
		SKU:      prod.SKU,
		Quantity: qty,
		Height:   freight.Number(prod.Height),
		Width:    freight.Number(prod.Width),
		Length:   freight.Number(prod.Length),
		Weight:   freight.Number(prod.Weight),
		Price:    prod.Price,
	}
}

// QuoteFreight mounts the package for items and asks the backend for
// shipping options to cep.
func (s *Storefront) QuoteFreight(ctx context.Context, cep string, items []freight.Item) (*FreightQuote, error) {
	if !validation.IsCEP(cep) {
		return nil, validation.FieldErrors{"cep": "invalid CEP"}
	}
	pkg, err := s.MountPackage(items)
	if err != nil {
		return nil, err
	}
	req := models.FreightQuoteRequest{
		OriginCEP:      validation.OnlyDigits(s.opts.OriginCEP),
		DestinationCEP: validation.OnlyDigits(cep),
		Height:         pkg.Height,
		Width:          pkg.Width,
		Length:         pkg.Length,
		Weight:         pkg.BillableWeight,
		DeclaredValue:  pkg.DeclaredValue,
	}

	opts, err := cached(ctx, s, "freight", cache.FreightKey(req), s.opts.FreightTTL, func() ([]models.FreightOption, error) {
		return s.backend.QuoteFreight(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return &FreightQuote{Package: pkg, Options: opts}, nil
}

// SelectFreight re-quotes items to cep and returns the option named
// service with the backend's price. The client only chooses the service.
func (s *Storefront) SelectFreight(ctx context.Context, service, cep string, items []freight.Item) (*models.FreightSelection, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, validation.FieldErrors{"service": "is required"}
	}

	q, err := s.QuoteFreight(ctx, cep, items)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Options {
		if strings.EqualFold(o.Service, service) {
			return &models.FreightSelection{
				Service: o.Service,
				CEP:     validation.FormatCEP(cep),
				Value:   o.Price,
				Days:    o.Days,
			}, nil
		}
	}
	return nil, validation.FieldErrors{"service": "is not offered for this CEP"}
}

// productBySKU finds the catalog entry for sku through the cached search.
func (s *Storefront) productBySKU(ctx context.Context, sku string) (models.Product, bool, error) {
	page, err := s.Products(ctx, models.ProductQuery{Search: sku, PageSize: maxPageSize})
	if err != nil {
		return models.Product{}, false, err
	}
	for _, p := range page.Items {
		if strings.EqualFold(p.SKU, sku) {
			return p, true, nil
		}
	}
	return models.Product{}, false, nil
}
