package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"wpre/internal/types"
)

// Validator wraps go-playground/validator and reports failures using the
// JSON field names clients send.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator keyed on `json` tag names.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct checks dst and returns an ErrCodeRequestShape error naming
// the first failing field, e.g. "missing required field: request_id".
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeRequestShape, "invalid request body", err)
	}

	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "missing required field: " + fe.Field()
	default:
		msg = fmt.Sprintf("invalid field: %s (%s)", fe.Field(), fe.Tag())
	}
	v.logger.Debug("request validation failed", "field", fe.Field(), "tag", fe.Tag())
	return types.NewAppError(types.ErrCodeRequestShape, msg, err)
}
