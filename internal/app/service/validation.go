package service

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	minCodeLength = 3
	maxCodeLength = 20
)

var shortCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedCodes are first path segments routed before the redirect handler.
// Routing is case-insensitive, so they are compared lower-cased.
var reservedCodes = map[string]struct{}{
	"api":    {},
	"health": {},
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

type createPayload struct {
	URL        string `validate:"required,max=2048,httpurl"`
	CustomCode string `validate:"omitempty,min=3,max=20,shortcode,unreserved"`
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return isHTTPURL(fl.Field().String())
		})
		_ = validate.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
			return shortCodeRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("unreserved", func(fl validator.FieldLevel) bool {
			return !IsReservedCode(fl.Field().String())
		})
	})
	return validate
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// ValidateCreate is the input gate in front of the spam classifier.
func ValidateCreate(rawURL, customCode string) error {
	err := getValidator().Struct(createPayload{URL: rawURL, CustomCode: customCode})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "request", Message: err.Error()}}}
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fieldError(fe))
	}
	return out
}

// IsReservedCode reports whether code collides with a fixed route.
func IsReservedCode(code string) bool {
	_, ok := reservedCodes[strings.ToLower(code)]
	return ok
}

// ValidCode reports whether code could have been assigned by this service.
func ValidCode(code string) bool {
	return len(code) >= minCodeLength && len(code) <= maxCodeLength && shortCodeRe.MatchString(code)
}

func fieldError(fe validator.FieldError) FieldError {
	switch fe.StructField() {
	case "URL":
		switch fe.Tag() {
		case "required":
			return FieldError{Field: "url", Message: "url is required"}
		case "max":
			return FieldError{Field: "url", Message: "url must be at most 2048 characters"}
		default:
			return FieldError{Field: "url", Message: "url must be a valid http or https URL"}
		}
	case "CustomCode":
		switch fe.Tag() {
		case "shortcode":
			return FieldError{Field: "custom_code", Message: "custom code can only contain letters, numbers, hyphens and underscores"}
		case "unreserved":
			return FieldError{Field: "custom_code", Message: "custom code is reserved"}
		default:
			return FieldError{Field: "custom_code", Message: "custom code must be between 3 and 20 characters"}
		}
	}
	return FieldError{Field: strings.ToLower(fe.Field()), Message: fe.Error()}
}
