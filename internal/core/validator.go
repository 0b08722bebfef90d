package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"agroia/internal/types"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Validator wraps go-playground/validator with the advisor's custom tags:
//
//	date        - string parses as YYYY-MM-DD
//	budget_tier - one of small, medium, large, custom (empty allowed)
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom tags. Field names in
// error details use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
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
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("date", validateDate)
	_ = v.RegisterValidation("budget_tier", validateBudgetTier)

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct runs struct-tag validation. Failures are returned as a
// validation_invalid_request AppError listing each offending field and tag.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Error("validator misuse", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}

	code := types.ErrCodeValidationInvalidRequest
	if len(fieldErrs) == 1 {
		code = codeForField(fieldErrs[0])
	}
	return types.NewAppErrorWithDetails(code, "request validation failed", err, map[string]any{"fields": fields})
}

func codeForField(fe validator.FieldError) types.ErrorCode {
	switch {
	case fe.Tag() == "required":
		return types.ErrCodeValidationMissingField
	case fe.Tag() == "date":
		return types.ErrCodeValidationInvalidDate
	case fe.Tag() == "budget_tier":
		return types.ErrCodeValidationInvalidTier
	case strings.Contains(fe.Field(), "budget"):
		return types.ErrCodeValidationInvalidBudget
	case strings.Contains(fe.Field(), "area"):
		return types.ErrCodeValidationInvalidArea
	default:
		return types.ErrCodeValidationInvalidRequest
	}
}

func validateDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validateBudgetTier(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "small", "medium", "large", "custom":
		return true
	default:
		return false
	}
}
