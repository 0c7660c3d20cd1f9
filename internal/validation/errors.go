// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const codeValidation = "VALIDATION_ERROR"

// ValidationError is one failed rule on one field.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field is the json name of the field, with an index for dive rules
// ("tags[0]").
func (e *ValidationError) Field() string      { return e.field }
func (e *ValidationError) Tag() string        { return e.tag }
func (e *ValidationError) Param() string      { return e.param }
func (e *ValidationError) Value() interface{} { return e.value }
func (e *ValidationError) Error() string      { return e.message }

// RequestValidationError holds every failed rule of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error joins the field messages with "; ".
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	var b strings.Builder
	for i := range ve.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ve.errors[i].message)
	}
	return b.String()
}

// APIError is the api package's error body, declared here to keep the
// import graph one-way.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError reports a single failure as field/tag details and several as a
// "fields" list.
func (ve *RequestValidationError) ToAPIError() *APIError {
	apiErr := &APIError{Code: codeValidation, Message: ve.Error()}
	switch len(ve.errors) {
	case 0:
		apiErr.Message = "Validation failed"
	case 1:
		e := ve.errors[0]
		apiErr.Details = map[string]interface{}{"field": e.field, "tag": e.tag}
	default:
		fields := make([]map[string]interface{}, 0, len(ve.errors))
		for _, e := range ve.errors {
			fields = append(fields, map[string]interface{}{
				"field":   e.field,
				"tag":     e.tag,
				"message": e.message,
			})
		}
		apiErr.Details = map[string]interface{}{"fields": fields}
	}
	return apiErr
}

var comparisons = map[string]string{
	"gte": "greater than or equal to",
	"lte": "less than or equal to",
	"gt":  "greater than",
	"lt":  "less than",
}

// describe renders a failed rule as an English sentence.
func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch tag := fe.Tag(); tag {
	case "required":
		return field + " is required"
	case "tag_label":
		return field + " must be a tag label starting with '#'"
	case "phone_digits":
		return field + " must be a phone number of 10 or 11 digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("%s must be %s %s", field, comparisons[tag], param)
	case "min", "max":
		bound := "at least"
		if tag == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, bound, param)
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain %s %s entries", field, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
