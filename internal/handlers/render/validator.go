package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("phone", validatePhoneNumber)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// validatePhoneNumber accepts a subscriber number with optional country prefix:
// an optional leading '+' followed by 10 to 15 digits
func validatePhoneNumber(fl validator.FieldLevel) bool {
	number := fl.Field().String()

	digits, _ := strings.CutPrefix(number, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}

	for i := range len(digits) {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}

	return true
}
