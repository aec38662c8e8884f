package academic

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/schedule"
)

var (
	scheduleTag  = "schedule"
	scheduleText = `schedule must look like "Monday 08:00-10:00"`
)

// InitValidators registers the academic validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(scheduleTag, scheduleValidation)
	core.RegisterCustomTranslation(validate, translator, scheduleTag, scheduleText)
}

func scheduleValidation(fl validator.FieldLevel) bool {
	return schedule.IsValid(fl.Field().String())
}
