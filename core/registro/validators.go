package registro

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/redland-cl/registro-escolar/core"
)

// seccionTag validates a stored section value; the ALL fan-out pseudo-value
// is only legal on activity creation and is checked there instead.
const seccionTag = "seccion"

func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(seccionTag, seccionValidation)
	core.RegisterCustomTranslation(validate, translator, seccionTag, ErrInvalidSeccion.Error())
}

func seccionValidation(fl validator.FieldLevel) bool {
	return ValidSeccion(fl.Field().String())
}
