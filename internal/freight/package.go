// Package freight estimates the shipping box for a cart: every item volume
// is summed into a single cube, clamped to carrier minimums.
package freight

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinHeight = 2
	MinWidth  = 11
	MinLength = 16

	// MinWeight is in kilograms.
	MinWeight = 0.3

	// CubicDivisor converts cm³ into kilograms of cubic weight.
	CubicDivisor = 6000.0

	// Bounds for a single item after unit conversion.
	MaxDimension  = 10000.0
	MaxItemWeight = 100000.0
	MaxQuantity   = 10000

	// maxSide caps the cube edge so the int conversion stays defined.
	maxSide = 1e6
)

type Item struct {
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	Height        Number          `json:"height"`
	Width         Number          `json:"width"`
	Length        Number          `json:"length"`
	Weight        Number          `json:"weight"`
	Price         decimal.Decimal `json:"price"`
	DimensionUnit string          `json:"dimension_unit,omitempty"`
	WeightUnit    string          `json:"weight_unit,omitempty"`
}

type Package struct {
	Height         int             `json:"height"`
	Width          int             `json:"width"`
	Length         int             `json:"length"`
	Weight         float64         `json:"weight"`
	CubicWeight    float64         `json:"cubic_weight"`
	BillableWeight float64         `json:"billable_weight"`
	Volume         float64         `json:"volume"`
	DeclaredValue  decimal.Decimal `json:"declared_value"`
	ItemCount      int             `json:"item_count"`
}

// Mount computes the package for items.
func Mount(items []Item) Package {
	var (
		volume float64
		weight float64
		value  = decimal.Zero
		count  int
	)

	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		count += qty

		f := lengthFactor(it.DimensionUnit)
		v := it.Height.Float() * f * it.Width.Float() * f * it.Length.Float() * f * float64(qty)
		if !usable(v) {
			v = 0
		}
		volume += v

		w := it.Weight.Float() * weightFactor(it.WeightUnit) * float64(qty)
		if !usable(w) {
			w = 0
		}
		weight += w

		line := it.Price.Mul(decimal.NewFromInt(int64(qty)))
		if line.IsPositive() {
			value = value.Add(line)
		}
	}

	if !usable(volume) {
		volume = 0
	}
	if !usable(weight) {
		weight = 0
	}
	side := int(math.Min(math.Ceil(math.Cbrt(volume)), maxSide))

	p := Package{
		Height:        max(side, MinHeight),
		Width:         max(side, MinWidth),
		Length:        max(side, MinLength),
		Weight:        round3(math.Max(weight, MinWeight)),
		Volume:        volume,
		DeclaredValue: value,
		ItemCount:     count,
	}
	p.CubicWeight = round3(float64(p.Height*p.Width*p.Length) / CubicDivisor)
	p.BillableWeight = math.Max(p.Weight, p.CubicWeight)
	return p
}

// ItemError names the first item Check rejected.
type ItemError struct {
	Index int
	Field string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %s out of range", e.Index, e.Field)
}

// Check rejects items whose measures are not finite or exceed the single
// item bounds. Negative measures pass, Mount floors them. Mount tolerates
// the rest too; callers that answer users should Check first.
func Check(items []Item) error {
	for i, it := range items {
		if it.Quantity > MaxQuantity {
			return &ItemError{Index: i, Field: "quantity"}
		}
		f := lengthFactor(it.DimensionUnit)
		dims := []struct {
			name string
			v    float64
		}{
			{"height", it.Height.Float() * f},
			{"width", it.Width.Float() * f},
			{"length", it.Length.Float() * f},
		}
		for _, d := range dims {
			if !finite(d.v) || d.v > MaxDimension {
				return &ItemError{Index: i, Field: d.name}
			}
		}
		if w := it.Weight.Float() * weightFactor(it.WeightUnit); !finite(w) || w > MaxItemWeight {
			return &ItemError{Index: i, Field: "weight"}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func usable(f float64) bool {
	return f >= 0 && finite(f)
}

func lengthFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mm":
		return 0.1
	case "m":
		return 100
	default:
		return 1
	}
}

func weightFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g":
		return 0.001
	default:
		return 1
	}
}

func round3(f float64) float64 {
	r := math.Round(f*1000) / 1000
	if !finite(r) {
		return f
	}
	return r
}
