package domain

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(mcqStructLevel, MCQ{})
	})
	return validate
}

// mcqStructLevel checks that the answer key points into the options.
func mcqStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(MCQ)
	if q.CorrectIndex >= len(q.Options) {
		sl.ReportError(q.CorrectIndex, "CorrectIndex", "CorrectIndex", "ltlen", "Options")
	}
}

// Validate checks a Flashcard or MCQ against its struct rules.
func Validate(v any) error {
	return validatorInstance().Struct(v)
}
