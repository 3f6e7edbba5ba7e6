package handlers

import (
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxLoginIDLength = 64

var registerOnce sync.Once

// registerValidators adds the "loginid" rule to gin's validator engine.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("loginid", validateLoginID)
	})
}

// validateLoginID accepts usernames and team names: 1 to 64 characters after
// trimming, no control characters.
func validateLoginID(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" || len(value) > maxLoginIDLength {
		return false
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
