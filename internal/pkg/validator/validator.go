package validator

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	paymentMethods   = []string{"balance", "wallet", "redirect", "card"}
	purchaseStatuses = []string{"pending", "paid", "in_progress", "delivered", "completed", "cancelled", "refunded"}
	deliveryStatuses = []string{"not_started", "in_progress", "review", "delivered", "accepted", "rejected", "cancelled"}
)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

func registerCustomValidations() {
	_ = validate.RegisterValidation("payment_method", oneOf(paymentMethods))
	_ = validate.RegisterValidation("purchase_status", oneOf(purchaseStatuses))
	_ = validate.RegisterValidation("delivery_status", oneOf(deliveryStatuses))
	_ = validate.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
		return IsHTTPURL(fl.Field().String())
	})
}

// IsHTTPURL reports whether raw is an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_without":
			out[field] = "This field is required"
		case "email":
			out[field] = "Invalid email format"
		case "min":
			out[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			out[field] = "Value is too long (max: " + fe.Param() + ")"
		case "gte":
			out[field] = "Value must be at least " + fe.Param()
		case "lte":
			out[field] = "Value must be at most " + fe.Param()
		case "url", "http_url":
			out[field] = "Invalid URL format"
		case "uuid", "uuid4":
			out[field] = "Invalid identifier"
		case "payment_method":
			out[field] = "Invalid payment method. Must be: " + strings.Join(paymentMethods, ", ")
		case "purchase_status":
			out[field] = "Invalid status. Must be: " + strings.Join(purchaseStatuses, ", ")
		case "delivery_status":
			out[field] = "Invalid delivery status. Must be: " + strings.Join(deliveryStatuses, ", ")
		default:
			out[field] = "Invalid value"
		}
	}
	return out
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
