// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package aferrors contains the typed errors shared by the dashboard components
// and the mapping from those errors to HTTP status codes.
package aferrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is returned whenever an addressed resource does not exist.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "pipeline" or "dataSource"
	Value   string // Resource id, e.g., "pl-1"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrAlreadyExists is returned when creating a resource whose id is already taken.
//
// See ErrNotFound for the meaning of the fields.
type ErrAlreadyExists struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is returned when a request carries a missing or malformed field.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "sourceId"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrConflict is returned when a transaction could not be committed because
// the keys it read kept changing underneath it.
type ErrConflict struct {
	Keys     []string
	Attempts int
}

func (err *ErrConflict) Error() string {
	return fmt.Sprintf("transaction on keys %v aborted after %d attempts due to concurrent modification", err.Keys, err.Attempts)
}

// HTTPStatusFromError maps the errors of this package to HTTP status codes.
// Errors not defined here, such as key-value store failures, map to 500.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var (
		notFound      *ErrNotFound
		alreadyExists *ErrAlreadyExists
		invalid       *ErrInvalidArgument
		conflict      *ErrConflict
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &alreadyExists):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err, or any error it wraps, is an *ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
