package session

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Professions offered when becoming a professional
var Professions = []string{
	"Pedreiro",
	"Carpinteiro",
	"Eletricista",
	"Pintor",
	"Barbeiro",
	"Encanador",
	"Diarista",
}

// ProfessionalDetails is collected before switching to the professional role
type ProfessionalDetails struct {
	Profession string `json:"profession" validate:"required,profession"`
	HasCNPJ    bool   `json:"has_cnpj"`
	// CNPJ is the MEI registration; only digits are kept
	CNPJ string `json:"cnpj" validate:"required_if=HasCNPJ true,cnpj"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type passwordChangeInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ReNewPassword   string `json:"re_new_password" validate:"required,eqfield=NewPassword"`
}

type resetInput struct {
	Email string `json:"email" validate:"required,email"`
}

// DigitsOnly strips everything but digits, e.g. "12.345.678/0001-90"
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so local and server errors read the same
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("profession", func(fl validator.FieldLevel) bool {
		return slices.Contains(Professions, fl.Field().String())
	})

	// Empty passes; required_if decides whether a value is needed
	validate.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		if DigitsOnly(value) != value {
			return false
		}
		return len(value) >= 11 && len(value) <= 14
	})

	return validate
}

// check runs struct validation and converts failures into an *InputError
func check(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeTag(fe)
	}
	return &InputError{Fields: fields}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "eqfield":
		return "Passwords do not match."
	case "profession":
		return fmt.Sprintf("Choose one of: %s.", strings.Join(Professions, ", "))
	case "cnpj":
		return "CNPJ must have 11 to 14 digits."
	default:
		return fmt.Sprintf("Failed the %q check.", fe.Tag())
	}
}
