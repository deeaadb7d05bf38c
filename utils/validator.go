package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var studyCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func init() {
	_ = validate.RegisterValidation("studycode", func(fl validator.FieldLevel) bool {
		return studyCodePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("dateymd", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param+" characters")
		case "max":
			errors = append(errors, field+" must be at most "+param+" characters")
		case "email":
			errors = append(errors, field+" must be a valid email")
		case "len":
			errors = append(errors, field+" must be exactly "+param+" characters")
		case "studycode":
			errors = append(errors, field+" must be 6 uppercase letters or digits")
		case "dateymd":
			errors = append(errors, field+" must be a YYYY-MM-DD date")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf(strings.Join(errors, ", "))
}

// ValidateEmailDeliverable checks the address format and that its domain
// accepts mail. The MX lookup is skipped when it fails transiently so that
// sign-up does not depend on DNS availability.
func ValidateEmailDeliverable(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("invalid email format")
	}
	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 2 {
		if err := checkmail.ValidateHost(parts[1]); err != nil {
			if _, ok := err.(checkmail.SmtpError); !ok {
				return fmt.Errorf("email domain does not accept mail")
			}
		}
	}
	return nil
}
