// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation validates visitor-supplied input before it is
// persisted or written to the backing store.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// identityInput mirrors the visitor identity form fields.
type identityInput struct {
	Name    string `validate:"required,min=2,max=120"`
	Email   string `validate:"required,email,max=254"`
	Company string `validate:"omitempty,max=200"`
}

// ValidateIdentity checks the visitor identity fields collected by the
// gate form. Name and email are required; company is optional. Values are
// trimmed before validation, matching how they are persisted.
//
// Returns a viewer-facing error describing the first problem found.
func ValidateIdentity(name, email, company string) error {
	in := identityInput{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Company: strings.TrimSpace(company),
	}

	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid identity: %w", err)
	}

	switch verrs[0].Field() {
	case "Name":
		return fmt.Errorf("please enter your name")
	case "Email":
		if verrs[0].Tag() == "required" {
			return fmt.Errorf("please enter your email address")
		}
		return fmt.Errorf("please enter a valid email address")
	default:
		return fmt.Errorf("invalid %s", strings.ToLower(verrs[0].Field()))
	}
}
