package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator 配置验证器，支持标准 validate tag：required、min/max、gte/lte、oneof、dive 等
type Validator struct {
	validate *validator.Validate
}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate 验证配置结构体
func (v *Validator) Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}

	if err := v.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, formatValidationErrors(err))
	}
	return nil
}

func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("field '%s' is required", field))
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at least %s", field, fe.Param()))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("field '%s' must be at most %s", field, fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("field '%s' must be one of [%s]", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("field '%s' failed validation '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
