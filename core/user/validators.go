package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/redland-cl/registro-escolar/core"
)

const roleTag = "userrole"

// RegisterValidators wires the directory's validation tags into the shared
// validator instance.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, ErrInvalidRole.Error())
}

func roleValidation(fl validator.FieldLevel) bool {
	return ValidRole(fl.Field().String())
}
