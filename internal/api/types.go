package api

import (
	"encoding/json"
	"time"
)

// --- Generation types ---

// GenerateTemplateRequest is the request body for POST /generate-template/.
type GenerateTemplateRequest struct {
	UserPrompt       *string         `json:"user_prompt" validate:"required"`
	Variables        []string        `json:"variables" validate:"required"`
	ExistingTemplate string          `json:"existing_template,omitempty"`
	SampleJSON       json.RawMessage `json:"sample_json,omitempty" swaggertype:"object"`
	DetailLevel      string          `json:"detail_level,omitempty" example:"high"`
}

// GenerateTemplateResponse is returned for the low detail level.
type GenerateTemplateResponse struct {
	JinjaTemplate string `json:"jinja_template"`
}

// DetailedTemplateResponse is returned for the medium and high detail levels.
type DetailedTemplateResponse struct {
	JinjaTemplate string   `json:"jinja_template"`
	DetailLevel   string   `json:"detail_level"`
	VariablesUsed []string `json:"variables_used"`
	Success       bool     `json:"success"`
	DummyJSON     any      `json:"dummy_json,omitempty" swaggertype:"object"`
}

// --- Decode types ---

// TestDecodeRequest is the request body for POST /test-decode/.
type TestDecodeRequest struct {
	ExistingTemplate string `json:"existing_template,omitempty"`
}

// TestDecodeResponse reports whether existing_template decodes.
type TestDecodeResponse struct {
	Status  string `json:"status"`
	Length  *int   `json:"length,omitempty"`
	Preview string `json:"preview,omitempty"`
	Message string `json:"message,omitempty"`
}

// --- History types ---

// GenerationResponse is the JSON representation of a recorded generation.
type GenerationResponse struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	DetailLevel    string    `json:"detail_level"`
	Variables      []string  `json:"variables"`
	DummyData      bool      `json:"dummy_data"`
	Status         string    `json:"status"`
	DurationMS     int64     `json:"duration_ms"`
	TemplateLength int       `json:"template_length"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// GenerationListResponse is the response for GET /generations.
type GenerationListResponse struct {
	Generations []GenerationResponse `json:"generations"`
	Counts      map[string]int64     `json:"counts"`
}
