package client

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"product-catalog/internal/storage"
)

// Check inspects a non-empty, trimmed field value and returns an error message or ""
type Check func(value string) string

// ImageCheck inspects an attached image and returns an error message or ""
type ImageCheck func(img *Image) string

// FieldRule describes how one form field is validated
type FieldRule struct {
	Required        bool
	RequiredMessage string
	Checks          []Check
}

// Rules is a validation table keyed by field name
type Rules struct {
	Fields map[string]FieldRule
	Image  []ImageCheck
}

// FieldErrors maps a field name to the first message that applies to it
type FieldErrors map[string]string

// FormError blocks a submission whose fields failed validation
type FormError struct {
	Fields FieldErrors
}

func (e *FormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid fields: %s", strings.Join(names, ", "))
}

// IsFormError reports whether err is a blocked submission
func IsFormError(err error) bool {
	var formErr *FormError
	return errors.As(err, &formErr)
}

var (
	pricePattern = regexp.MustCompile(`^\$?\d+(\.\d{1,2})?$`)
	stockPattern = regexp.MustCompile(`^\d+$`)
)

// StrictRules mirror the server constraints plus the form-only limits
var StrictRules = Rules{
	Fields: map[string]FieldRule{
		"name": {
			Required:        true,
			RequiredMessage: "Product name is required",
			Checks: []Check{
				MinLength(2, "Product name must be at least 2 characters"),
				MaxLength(255, "Product name must be at most 255 characters"),
			},
		},
		"description": {
			Required:        true,
			RequiredMessage: "Description is required",
			Checks:          []Check{MaxLength(2000, "Description must be at most 2000 characters")},
		},
		"price": {
			Required:        true,
			RequiredMessage: "Price is required",
			Checks:          []Check{Matches(pricePattern, "Invalid price format (e.g., $123 or 123)")},
		},
		"category": {
			Required:        true,
			RequiredMessage: "Category is required",
			Checks:          []Check{MaxLength(255, "Category must be at most 255 characters")},
		},
		"stock": {
			Checks: []Check{Matches(stockPattern, "Stock must be a non-negative whole number")},
		},
	},
	Image: []ImageCheck{
		ImageTypes("Please select a valid image file (jpeg, png, webp or gif)"),
		ImageMaxSize(storage.DefaultMaxImageSize, "Image size must be less than 5MB"),
	},
}

// NoRules accepts any input and leaves validation to the server
var NoRules = Rules{}

// MinLength requires at least n characters
func MinLength(n int, message string) Check {
	return func(value string) string {
		if utf8.RuneCountInString(value) < n {
			return message
		}
		return ""
	}
}

// MaxLength allows at most n characters
func MaxLength(n int, message string) Check {
	return func(value string) string {
		if utf8.RuneCountInString(value) > n {
			return message
		}
		return ""
	}
}

// Matches requires the value to match re
func Matches(re *regexp.Regexp, message string) Check {
	return func(value string) string {
		if !re.MatchString(value) {
			return message
		}
		return ""
	}
}

// ImageTypes accepts the image types the server stores
func ImageTypes(message string) ImageCheck {
	return func(img *Image) string {
		// the server sniffs content, so do the same here
		if !storage.IsAllowedContentType(http.DetectContentType(img.Data)) {
			return message
		}
		return ""
	}
}

// ImageMaxSize rejects images larger than maxBytes
func ImageMaxSize(maxBytes int64, message string) ImageCheck {
	return func(img *Image) string {
		if int64(len(img.Data)) > maxBytes {
			return message
		}
		return ""
	}
}

// FormValidator applies a Rules table to form input
type FormValidator struct {
	rules Rules
}

// NewFormValidator creates a validator for the given table
func NewFormValidator(rules Rules) *FormValidator {
	return &FormValidator{rules: rules}
}

// ValidateCreate checks a full form; required fields must be present
func (v *FormValidator) ValidateCreate(fields Fields, img *Image) FieldErrors {
	return v.validate(fields, img, false)
}

// ValidateUpdate checks only the fields being changed
func (v *FormValidator) ValidateUpdate(fields Fields, img *Image) FieldErrors {
	return v.validate(fields, img, true)
}

func (v *FormValidator) validate(fields Fields, img *Image, partial bool) FieldErrors {
	errs := FieldErrors{}

	for name, rule := range v.rules.Fields {
		raw, present := fields[name]
		value := strings.TrimSpace(raw)

		if value == "" {
			if rule.Required && (!partial || present) {
				errs[name] = rule.RequiredMessage
			}
			continue
		}

		for _, check := range rule.Checks {
			if msg := check(value); msg != "" {
				errs[name] = msg
				break
			}
		}
	}

	if img != nil {
		for _, check := range v.rules.Image {
			if msg := check(img); msg != "" {
				errs["image"] = msg
				break
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
