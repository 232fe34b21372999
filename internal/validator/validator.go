package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edtestlab/exam-engine/internal/models"
)

// Validator wraps go-playground struct validation together with the custom
// exam-domain rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	v := &Validator{validate: validate}
	v.registerDomainRules()

	return v
}

// Validate runs struct-tag validation and returns ValidationErrors on
// failure, nil otherwise.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerDomainRules() {
	// question type must be one of the closed grader set
	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.ValidQuestionTypes[models.QuestionType(fl.Field().String())]
	})

	// sort direction for list endpoints
	v.validate.RegisterValidation("sort_dir", func(fl validator.FieldLevel) bool {
		dir := strings.ToLower(fl.Field().String())
		return dir == "" || dir == "asc" || dir == "desc"
	})
}
