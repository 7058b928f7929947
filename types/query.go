package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

// ChatParams is the body of POST /chat. A nil ThreadID starts a new session.
type ChatParams struct {
	Question string  `json:"question" validate:"required,max=4000"`
	ThreadID *string `json:"thread_id" validate:"omitempty,max=128"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	return validationErrors(validate.Struct(params))
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	errors := make(map[string]string)
	for _, e := range errs {
		errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errors
}

// ConfigResponse is returned by GET /api/v1/config.
type ConfigResponse struct {
	Mode          string   `json:"mode"`
	Tools         []string `json:"tools"`
	MaxIterations int      `json:"max_iterations"`
	LLMModel      string   `json:"llm_model"`
	EmbedModel    string   `json:"embedding_model"`
}
