package attendance

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/spimentel1201/EduMF-sub001/core"
)

// Status is the outcome recorded for one student within one attendance session.
type Status string

const (
	StatusPresent Status = "Presente"
	StatusAbsent  Status = "Ausente"
	StatusLate    Status = "Tardanza"
	StatusExcused Status = "Justificado"

	DefaultStatus = StatusPresent
)

var (
	AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

	statusAliases = map[string]Status{
		"presente":    StatusPresent,
		"present":     StatusPresent,
		"ausente":     StatusAbsent,
		"absent":      StatusAbsent,
		"tardanza":    StatusLate,
		"late":        StatusLate,
		"justificado": StatusExcused,
		"excused":     StatusExcused,
	}

	statusTag  = "attendance_status"
	statusText = "status must be one of Presente, Ausente, Tardanza or Justificado"
)

// ParseStatus normalises s (Spanish or English, any case) into a Status.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// InitValidators registers the attendance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

// statusValidation accepts any spelling ParseStatus understands.
func statusValidation(fl validator.FieldLevel) bool {
	_, ok := ParseStatus(fl.Field().String())
	return ok
}
