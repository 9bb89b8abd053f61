package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"daypass/internal/types"
)

// Validator wraps go-playground/validator for request DTOs. Field names in
// failures use the json tag so callers see the names they sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. A nil logger uses slog.Default().
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
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

// ValidateStruct returns nil or a validation AppError. The first failing
// field picks the code; every failure is listed under details.fields.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError means a programming error (nil or non-struct).
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	first := verrs[0]
	return types.NewAppErrorWithDetails(
		codeForTag(first.Tag()),
		first.Field()+" failed "+first.Tag()+" validation",
		err,
		map[string]any{"fields": fields},
	)
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "uuid", "uuid4":
		return types.ErrCodeValidationRecordID
	default:
		return types.ErrCodeValidationMissingField
	}
}
