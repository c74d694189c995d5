package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"rewardpool/internal/audit"
	"rewardpool/internal/auth"
	"rewardpool/internal/distribution/application"
	distribution "rewardpool/internal/distribution/domain"
)

const auditActionRun = "distribution.run"

// Runner executes the distribution for the current period.
type Runner interface {
	RunToday(ctx context.Context) (application.Result, error)
}

// RunHandler serves POST /api/v1/distributions/run.
type RunHandler struct {
	runner Runner
	audit  audit.Logger
	logger *zap.Logger
}

// NewRunHandler constructs a RunHandler. A nil audit logger disables auditing.
func NewRunHandler(runner Runner, auditLogger audit.Logger, logger *zap.Logger) (*RunHandler, error) {
	if runner == nil {
		return nil, errors.New("run handler: nil runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{runner: runner, audit: auditLogger, logger: logger}, nil
}

type runResponse struct {
	Success           bool    `json:"success"`
	Period            string  `json:"period,omitempty"`
	EntitiesProcessed int     `json:"entitiesProcessed"`
	TotalDistributed  string  `json:"totalDistributed,omitempty"`
	ReferencePrice    float64 `json:"referencePrice,omitempty"`
	Message           string  `json:"message,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// ServeHTTP runs the current period.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h == nil || h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "server not ready")
		return
	}

	result, err := h.runner.RunToday(r.Context())
	if err != nil {
		h.logger.Error("distribution run failed",
			zap.String("period", result.Period.String()),
			zap.Error(err))
		h.record(r, result, audit.OutcomeFailed)
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := runResponse{
		Success:           true,
		Period:            result.Period.String(),
		EntitiesProcessed: result.EntitiesProcessed,
		Message:           result.Message,
	}
	if !result.Benign() {
		resp.TotalDistributed = result.TotalDistributed.StringFixed(distribution.AmountPrecision)
		resp.ReferencePrice = result.ReferencePrice
	}
	h.record(r, result, audit.OutcomeSuccess)
	writeJSON(w, http.StatusOK, resp)
}

func (h *RunHandler) record(r *http.Request, result application.Result, outcome string) {
	if h.audit == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{
		"outcome":            string(result.Outcome),
		"entities_processed": result.EntitiesProcessed,
		"skipped":            len(result.Skipped),
		"root":               result.Root,
	})
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       auditActionRun,
		ResourceType: "period",
		ResourceID:   result.Period.String(),
		Outcome:      outcome,
		Metadata:     metadata,
		IP:           clientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.audit.Log(context.WithoutCancel(r.Context()), entry); err != nil {
		h.logger.Warn("audit log failed", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, distribution.ErrInvalidPeriodKey):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
