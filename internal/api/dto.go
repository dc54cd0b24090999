package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// questionIndex accepts either a JSON number or a numeric string
type questionIndex int

func (q *questionIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("question_id must be an integer, got %s", data)
	}
	*q = questionIndex(n)
	return nil
}

type answerRequest struct {
	QuestionID *questionIndex `json:"question_id" validate:"required"`
	Answer     *string        `json:"answer" validate:"required,max=4096"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationDetail flattens validator errors into one readable line
func validationDetail(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonFieldName(fe.StructField())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonFieldName(structField string) string {
	switch structField {
	case "QuestionID":
		return "question_id"
	case "Answer":
		return "answer"
	default:
		return strings.ToLower(structField)
	}
}
