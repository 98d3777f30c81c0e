package delivery

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	idNumberPattern = regexp.MustCompile(`^\d{17}[\dXx]$`)
	mobilePattern   = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// RegisterValidators adds the cn_id_number and cn_mobile tags to gin's
// binding validator. Call once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("cn_id_number", func(fl validator.FieldLevel) bool {
		return idNumberPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("cn_mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
}
