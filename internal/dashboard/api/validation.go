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

package api

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"aetherflow/internal/common/aferrors"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names rather than Go ones.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks req against its validate tags. A missing required field
// yields requiredMsg; any other violation names the field and its allowed values.
func (s *Server) validateRequest(req interface{}, requiredMsg string) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.WithStack(err)
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return errors.WithStack(&aferrors.ErrInvalidArgument{Name: fe.Field(), Value: fe.Value(), Message: requiredMsg})
		}
	}
	fe := fieldErrs[0]
	msg := fmt.Sprintf("%s is invalid", fe.Field())
	if fe.Tag() == "oneof" {
		msg = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return errors.WithStack(&aferrors.ErrInvalidArgument{Name: fe.Field(), Value: fe.Value(), Message: msg})
}
