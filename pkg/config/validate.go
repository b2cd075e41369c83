// Zaparoo Nextion
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Nextion.
//
// Zaparoo Nextion is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Nextion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Nextion.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidConfig = errors.New("invalid config")

// NextionBaudRates are the serial speeds a Nextion display can be set to.
var NextionBaudRates = []int{
	2400, 4800, 9600, 19200, 31250, 38400, 57600,
	115200, 230400, 250000, 256000, 512000, 921600,
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nextion_baud", validateNextionBaud)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateNextionBaud(fl validator.FieldLevel) bool {
	return slices.Contains(NextionBaudRates, int(fl.Field().Int()))
}

func validate(vals *Values) error {
	err := configValidator.Struct(vals)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	msgs := make([]string, len(errs))
	for i, fe := range errs {
		msgs[i] = formatValidationError(fe)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatValidationError(fe validator.FieldError) string {
	// Values.download.host -> download.host
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_with":
		return field + " is required when " + strings.ToLower(fe.Param()) + " is set"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return field + " must be a valid URL"
	case "hostname_port|url":
		return field + " must be host:port or a broker URL"
	case "hostname_rfc1123|ip":
		return field + " must be a hostname or IP address"
	case "nextion_baud":
		return fmt.Sprintf("%s must be a supported baud rate, got %v", field, fe.Value())
	default:
		return field + " is invalid"
	}
}
