package quiz

import "errors"

var (
	ErrAlreadyCompleted = errors.New("quiz: session already completed")
	ErrEmptySession     = errors.New("quiz: session has no questions")
	ErrQuestionNotFound = errors.New("quiz: question not in session")
)
