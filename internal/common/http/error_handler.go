package http

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/observability/metrics"
)

type ErrorHandler struct {
	log *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()
	traceID := logger.TraceIDFromContext(ctx)

	domainErr, ok := commonerrors.AsDomainError(err)
	if !ok {
		h.log.WithFields(ctx, logger.Fields{
			"error":  err.Error(),
			"path":   r.URL.Path,
			"action": "unhandled_error",
		}).Error("unhandled error")

		WriteErrorEnvelope(w, http.StatusInternalServerError, commonerrors.ErrInternalError.Code(), "internal server error", nil, traceID)
		return
	}

	status := domainErr.HTTPStatus()
	h.log.WithFields(ctx, logger.Fields{
		"error_code": domainErr.Code(),
		"category":   string(domainErr.Category()),
		"status":     status,
		"action":     "domain_error",
	}).Debugf("domain error: %s", domainErr.Error())

	metrics.DomainErrorsTotal.WithLabelValues(string(domainErr.Category()), domainErr.Code()).Inc()

	WriteErrorEnvelope(w, status, domainErr.Code(), domainErr.Message(), nil, traceID)
}
