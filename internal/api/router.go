package api

import (
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/generate"
)

// HistoryStore records and reads generation history.
type HistoryStore interface {
	HistoryRecorder
	HistoryReader
}

// Deps holds all dependencies required to build the API router.
type Deps struct {
	// Pipeline answers valid requests with 503 when built without a generator.
	// Nil means a pipeline without a generator using the default input rules.
	Pipeline *generate.Pipeline
	// History is nil when no database is configured.
	History    HistoryStore
	Provider   string
	Credential bool
	Logger     *zap.Logger
}

// NewAPIRouter creates the chi sub-router serving the JSON endpoints. Each
// route answers with and without its trailing slash.
func NewAPIRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipeline := deps.Pipeline
	if pipeline == nil {
		pipeline = generate.NewPipeline(nil, nil, generate.Config{RequireSampleJSON: true}, logger)
	}

	gen := &generateAPIHandler{
		pipeline: pipeline,
		validate: newValidator(),
		logger:   logger,
	}
	hist := &historyAPIHandler{logger: logger}
	if deps.History != nil {
		gen.history = deps.History
		hist.history = deps.History
	}
	health := &healthHandler{
		provider:   deps.Provider,
		credential: deps.Credential,
		history:    deps.History != nil,
	}

	r := chi.NewRouter()

	r.Get("/healthz", health.Health)

	r.Post("/generate-template", gen.GenerateTemplate)
	r.Post("/generate-template/", gen.GenerateTemplate)
	r.Post("/test-decode", gen.TestDecode)
	r.Post("/test-decode/", gen.TestDecode)

	r.Get("/generations", hist.List)
	r.Get("/generations/", hist.List)
	r.Get("/generations/{id}", hist.Get)

	return r
}

// newValidator reports failing fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
