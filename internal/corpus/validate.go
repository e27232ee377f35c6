package corpus

import (
	"fmt"
	"strings"
)

const (
	maxQuestionLength = 4096
	maxAnswerLength   = 65536
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// Validate trims question and answer and checks both are present and within
// length limits. It returns the trimmed record.
func Validate(question, answer string) (QARecord, error) {
	rec := QARecord{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	errs := make(map[string]string)
	if rec.Question == "" {
		errs["question"] = "question is required"
	} else if len(rec.Question) > maxQuestionLength {
		errs["question"] = fmt.Sprintf("question must be at most %d characters", maxQuestionLength)
	}
	if rec.Answer == "" {
		errs["answer"] = "answer is required"
	} else if len(rec.Answer) > maxAnswerLength {
		errs["answer"] = fmt.Sprintf("answer must be at most %d characters", maxAnswerLength)
	}
	if len(errs) > 0 {
		return QARecord{}, &ValidationError{Fields: errs}
	}
	return rec, nil
}
