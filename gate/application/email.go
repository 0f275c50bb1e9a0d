package application

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidEmail aplica a checagem sintática de email. 254 é o limite da coluna.
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email,max=254") == nil
}
