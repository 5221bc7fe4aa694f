package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

var pincodePattern = regexp.MustCompile(`^\d{6}$`)

// New returns a validator with the storefront's custom tags registered:
// notblank rejects whitespace-only strings and pincode requires a 6-digit postal code.
// decimal.Decimal fields validate as numbers, so gt=0 works on prices.
func New() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("pincode", func(fl validatorv10.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	})
	// city comparisons are case-insensitive
	_ = v.RegisterValidation("ne_fold", func(fl validatorv10.FieldLevel) bool {
		return !strings.EqualFold(strings.TrimSpace(fl.Field().String()), fl.Param())
	})

	return v
}

// Fields flattens validator errors into JSON field name -> failing tag.
func Fields(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return out
	}
	out["error"] = err.Error()
	return out
}
