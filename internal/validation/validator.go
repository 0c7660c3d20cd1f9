// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package validation wraps go-playground/validator v10 for request and
// catalog structs.
//
// Error messages name fields by their json tag, so API clients see the names
// they sent. Two tags are registered on top of the built-in ones:
//
//	tag_label     "#" followed by at least one non-space rune, e.g. "#달콤한"
//	phone_digits  accepted by NormalizePhone
//
// Typical use in a handler:
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return verr
//	}
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// The library caches struct metadata per instance, so one instance serves
// the whole process.
var instance = sync.OnceValue(newValidator)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	for tag, fn := range map[string]validator.Func{
		"tag_label":    isTagLabel,
		"phone_digits": isPhoneDigits,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("validation: register " + tag + ": " + err.Error())
		}
	}
	return v
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	return instance()
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func isTagLabel(fl validator.FieldLevel) bool {
	label, ok := strings.CutPrefix(fl.Field().String(), "#")
	return ok && label != "" && !strings.ContainsFunc(label, unicode.IsSpace)
}

func isPhoneDigits(fl validator.FieldLevel) bool {
	_, err := NormalizePhone(fl.Field().String())
	return err == nil
}

// ValidateStruct checks s and returns nil when every rule passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was nil or not a struct.
		return &RequestValidationError{errors: []ValidationError{{
			field: "unknown", tag: "unknown", message: err.Error(),
		}}}
	}

	out := &RequestValidationError{errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.errors = append(out.errors, ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: describe(fe),
		})
	}
	return out
}
