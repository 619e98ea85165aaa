// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StorageBackends and ConfigBackends list the accepted backend names.
var (
	StorageBackends = []string{"memory", "redis", "postgres", "dynamodb"}
	ConfigBackends  = []string{"memory", "file", "redis", "postgres"}
)

// RegisterCustomValidators registers the backend name rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("storage_backend", oneOf(StorageBackends)); err != nil {
		return fmt.Errorf("failed to register storage_backend validator: %w", err)
	}
	if err := v.RegisterValidation("config_backend", oneOf(ConfigBackends)); err != nil {
		return fmt.Errorf("failed to register config_backend validator: %w", err)
	}
	return nil
}

func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	}
}

// Validate checks struct tags and the cross-field backend requirements.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateBackends(); err != nil {
		return err
	}

	if c.Timeouts.CriticalThreshold < c.Timeouts.WarningThreshold {
		return errors.New("timeouts: critical_threshold must not be below warning_threshold")
	}
	return nil
}

// validateBackends ensures every selected backend has its connection setting.
func (c *Config) validateBackends() error {
	s := c.Storage
	needs := func(backend string) error {
		switch backend {
		case "redis":
			if s.RedisAddr == "" {
				return errors.New("storage: redis backend requires redis_addr")
			}
		case "postgres":
			if s.PostgresDSN == "" {
				return errors.New("storage: postgres backend requires postgres_dsn")
			}
		case "dynamodb":
			if s.DynamoDBTable == "" {
				return errors.New("storage: dynamodb backend requires dynamodb_table")
			}
		case "file":
			if s.ConfigFile == "" {
				return errors.New("storage: file config backend requires config_file")
			}
		}
		return nil
	}
	if err := needs(s.Backend); err != nil {
		return err
	}
	return needs(s.ConfigBackend)
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", field)
	case "storage_backend":
		return fmt.Sprintf("%s: must be one of %s, got %q", field, strings.Join(StorageBackends, ", "), e.Value())
	case "config_backend":
		return fmt.Sprintf("%s: must be one of %s, got %q", field, strings.Join(ConfigBackends, ", "), e.Value())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s: must be a valid URL", field)
	case "gte", "lte", "gt":
		return fmt.Sprintf("%s: must be %s %s", field, e.Tag(), e.Param())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, e.Tag())
	}
}
