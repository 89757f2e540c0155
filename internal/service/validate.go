package service

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// validEmail reports whether s is a syntactically valid address of at most 100 characters.
func validEmail(s string) bool {
	return validate.Var(s, "required,email,max=100") == nil
}
