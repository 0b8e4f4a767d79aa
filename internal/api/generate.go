package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/generate"
	"github.com/joestump/templatesmith/internal/metrics"
	"github.com/joestump/templatesmith/internal/store"
)

const maxBodyBytes = 10 << 20

// HistoryRecorder persists generation outcomes. *store.GenerationStore satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, g *store.Generation) error
}

// generateAPIHandler provides the template generation endpoints.
type generateAPIHandler struct {
	pipeline *generate.Pipeline
	history  HistoryRecorder
	validate *validator.Validate
	logger   *zap.Logger
}

// GenerateTemplate creates or modifies a Jinja template.
// POST /generate-template/
//
// @Summary      Generate a Jinja template
// @Description  Creates a template from the prompt, variables and sample JSON, or modifies the base64 existing_template.
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Param        request  body      GenerateTemplateRequest  true  "Generation request"
// @Success      200      {object}  DetailedTemplateResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Failure      503      {object}  ErrorResponse
// @Failure      504      {object}  ErrorResponse
// @Router       /generate-template/ [post]
func (h *generateAPIHandler) GenerateTemplate(w http.ResponseWriter, r *http.Request) {
	var req GenerateTemplateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	greq := generate.Request{
		UserPrompt:       *req.UserPrompt,
		Variables:        req.Variables,
		ExistingTemplate: req.ExistingTemplate,
		SampleJSON:       req.SampleJSON,
		DetailLevel:      req.DetailLevel,
	}

	start := time.Now()
	res, err := h.pipeline.Run(r.Context(), greq)
	elapsed := time.Since(start)
	if errors.Is(err, generate.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "Template generation is not configured")
		return
	}

	detail := string(generate.ParseDetailLevel(req.DetailLevel))
	metrics.GenerationDuration.WithLabelValues(detail).Observe(elapsed.Seconds())
	h.record(r.Context(), greq, res, err, elapsed)

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(detail, statusOf(err)).Inc()
		h.writeGenerationError(w, err)
		return
	}
	metrics.GenerationsTotal.WithLabelValues(detail, store.StatusSuccess).Inc()

	if !res.Options.Detail.Validates() {
		writeJSON(w, http.StatusOK, GenerateTemplateResponse{JinjaTemplate: res.Template})
		return
	}
	vars := res.Variables
	if vars == nil {
		vars = []string{}
	}
	writeJSON(w, http.StatusOK, DetailedTemplateResponse{
		JinjaTemplate: res.Template,
		DetailLevel:   string(res.Options.Detail),
		VariablesUsed: vars,
		Success:       true,
		DummyJSON:     res.DummyJSON,
	})
}

// TestDecode reports whether existing_template is valid base64 and previews it.
// POST /test-decode/
//
// @Summary      Check a base64 template
// @Description  Decodes existing_template and returns its length and a 500 character preview.
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Param        request  body      TestDecodeRequest  true  "Template to decode"
// @Success      200      {object}  TestDecodeResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /test-decode/ [post]
func (h *generateAPIHandler) TestDecode(w http.ResponseWriter, r *http.Request) {
	var req TestDecodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.ExistingTemplate == "" {
		writeJSON(w, http.StatusOK, TestDecodeResponse{Status: "No template provided"})
		return
	}

	n, preview, err := generate.DecodePreview(req.ExistingTemplate)
	if err != nil {
		writeJSON(w, http.StatusOK, TestDecodeResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, TestDecodeResponse{Status: "success", Length: &n, Preview: preview})
}

func (h *generateAPIHandler) writeGenerationError(w http.ResponseWriter, err error) {
	switch generate.KindOf(err) {
	case generate.KindInvalidEncoding, generate.KindMissingInput:
		writeError(w, http.StatusBadRequest, err.Error())
	case generate.KindTimeout:
		writeError(w, http.StatusGatewayTimeout, "Template generation timed out: "+err.Error())
	default:
		h.logger.Error("template generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Template generation failed: "+err.Error())
	}
}

// record writes the outcome to the history store. Failures are logged only.
func (h *generateAPIHandler) record(ctx context.Context, req generate.Request, res *generate.Result, runErr error, elapsed time.Duration) {
	if h.history == nil {
		return
	}
	g := &store.Generation{
		Mode:        string(generate.ModeCreate),
		DetailLevel: string(generate.ParseDetailLevel(req.DetailLevel)),
		Variables:   req.Variables,
		Status:      store.StatusSuccess,
		DurationMS:  elapsed.Milliseconds(),
	}
	if req.ExistingTemplate != "" {
		g.Mode = string(generate.ModeModify)
	}
	if res != nil {
		g.DummyData = res.Options.DummyData
		g.TemplateLength = len(res.Template)
	}
	if runErr != nil {
		g.Status = statusOf(runErr)
		g.Error = runErr.Error()
	}

	if err := h.history.Record(context.WithoutCancel(ctx), g); err != nil {
		metrics.HistoryWriteErrorsTotal.Inc()
		h.logger.Warn("record generation history", zap.Error(err))
	}
}

func statusOf(err error) string {
	switch generate.KindOf(err) {
	case generate.KindInvalidEncoding, generate.KindMissingInput:
		return store.StatusInvalid
	case generate.KindTimeout:
		return store.StatusTimeout
	default:
		return store.StatusFailed
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// validationDetail lists the offending JSON fields, e.g. "missing required fields: user_prompt, variables".
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))
}
