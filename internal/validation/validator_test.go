// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package validation

import (
	"strings"
	"testing"
)

type bundleRequest struct {
	Budget    int64    `json:"budget" validate:"gte=0"`
	Sweetness int      `json:"sweetness" validate:"min=0,max=5"`
	Tags      []string `json:"tags" validate:"max=3,dive,tag_label"`
}

type identifyRequest struct {
	Contact string `json:"contact" validate:"required,phone_digits"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	req := bundleRequest{Budget: 8000, Sweetness: 3, Tags: []string{"#달콤한", "#인기"}}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{"negative budget", &bundleRequest{Budget: -1}, "budget", "gte"},
		{"sweetness too high", &bundleRequest{Sweetness: 6}, "sweetness", "max"},
		{"four tags", &bundleRequest{Tags: []string{"#a", "#b", "#c", "#d"}}, "tags", "max"},
		{"tag without hash", &bundleRequest{Tags: []string{"sweet"}}, "tags[0]", "tag_label"},
		{"tag with space", &bundleRequest{Tags: []string{"#very sweet"}}, "tags[0]", "tag_label"},
		{"missing contact", &identifyRequest{}, "contact", "required"},
		{"short phone", &identifyRequest{Contact: "010-123"}, "contact", "phone_digits"},
		{"nine digit phone", &identifyRequest{Contact: "02 123 4567"}, "contact", "phone_digits"},
		{"letters in phone", &identifyRequest{Contact: "010-1234-abcd"}, "contact", "phone_digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verr := ValidateStruct(tt.input)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestPhoneDigitsAcceptsSeparators(t *testing.T) {
	t.Parallel()

	for _, contact := range []string{"01012345678", "010-1234-5678", "02 1234 5678", "010.1234.5678", " 010-1234-5678\t"} {
		if err := ValidateStruct(&identifyRequest{Contact: contact}); err != nil {
			t.Errorf("%q rejected: %v", contact, err)
		}
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&bundleRequest{Budget: -5}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", single.Code)
	}
	if single.Details["field"] != "budget" {
		t.Errorf("Details[field] = %v, want budget", single.Details["field"])
	}

	multi := ValidateStruct(&bundleRequest{Budget: -5, Sweetness: 9}).ToAPIError()
	if !strings.Contains(multi.Message, "budget") || !strings.Contains(multi.Message, "sweetness") {
		t.Errorf("Message = %q, want both fields", multi.Message)
	}
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Errorf("Details[fields] = %v, want 2 entries", multi.Details["fields"])
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"010-1234-5678", "01012345678", false},
		{"\t02 1234 5678 ", "0212345678", false},
		{"02 123 4567", "", true},
		{"010-1234-56789", "", true},
		{"010/1234/5678", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q, wantErr %v", tt.raw, got, err, tt.want, tt.wantErr)
		}

		// The request tag must agree with the normalizer on every input.
		tagErr := ValidateStruct(&identifyRequest{Contact: tt.raw})
		if (tagErr != nil) != tt.wantErr {
			t.Errorf("phone_digits(%q) = %v, want rejection %v", tt.raw, tagErr, tt.wantErr)
		}
	}
}
