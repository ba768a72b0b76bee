package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-bff/internal/models"
)

// FieldErrors maps a JSON field path (e.g. "billing.cep") to a message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for k, v := range fe {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("cpf", stringRule(IsCPF))
	_ = v.RegisterValidation("cnpj", stringRule(IsCNPJ))
	_ = v.RegisterValidation("document", stringRule(IsDocument))
	_ = v.RegisterValidation("cep", stringRule(IsCEP))
	_ = v.RegisterValidation("phone_br", stringRule(IsPhone))
	_ = v.RegisterValidation("cardnumber", stringRule(IsCardNumber))
	_ = v.RegisterValidation("cardexpiry", stringRule(IsCardExpiry))

	v.RegisterStructValidation(paymentRules, models.CheckoutPayment{})

	return &Validator{v: v}
}

// Struct returns nil when s passes every rule.
func (v *Validator) Struct(s any) FieldErrors {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		if _, exists := out[key]; !exists {
			out[key] = message(fe)
		}
	}
	return out
}

// Var validates a single value against a tag list such as "required,cep".
func (v *Validator) Var(value any, tag string) bool {
	return v.v.Var(value, tag) == nil
}

func stringRule(fn func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	}
}

func paymentRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(models.CheckoutPayment)
	if p.Method != models.PaymentCreditCard {
		return
	}
	if !IsCardNumber(p.CardNumber) {
		sl.ReportError(p.CardNumber, "card_number", "CardNumber", "cardnumber", "")
	}
	if strings.TrimSpace(p.CardHolder) == "" {
		sl.ReportError(p.CardHolder, "card_holder", "CardHolder", "required", "")
	}
	if !IsCardExpiry(p.CardExpiry) {
		sl.ReportError(p.CardExpiry, "card_expiry", "CardExpiry", "cardexpiry", "")
	}
	if !IsCVV(p.CardCVV, p.CardNumber) {
		sl.ReportError(p.CardCVV, "card_cvv", "CardCVV", "cvv", "")
	}
	if p.Installments > 1 && CardBrand(p.CardNumber) == "" {
		sl.ReportError(p.Installments, "installments", "Installments", "brand", "")
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid e-mail"
	case "cpf":
		return "invalid CPF"
	case "cnpj":
		return "invalid CNPJ"
	case "document":
		return "invalid CPF/CNPJ"
	case "cep":
		return "invalid CEP"
	case "phone_br":
		return "invalid phone number"
	case "cardnumber":
		return "invalid card number"
	case "cardexpiry":
		return "card expired or invalid expiry"
	case "cvv":
		return "invalid security code"
	case "brand":
		return "installments require a known card brand"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	}
	return "is invalid"
}
