// Package http provides HTTP handlers for observing and triggering the
// registration completion pipeline.
package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/registration/internal/httputil"
	"github.com/campushq/registration/internal/registration/domain"
	"github.com/campushq/registration/internal/registration/http/dto"
	"github.com/campushq/registration/internal/registration/usecase"
	customValidation "github.com/campushq/registration/internal/validation"
)

// ProgressHandler handles HTTP requests for task progress observation.
// Progress is observable two ways: a poll endpoint with version-based
// change detection, and a push stream over server-sent events.
type ProgressHandler struct {
	progressUseCase usecase.ProgressUseCase
	logger          *slog.Logger
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(progressUseCase usecase.ProgressUseCase, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progressUseCase: progressUseCase,
		logger:          logger,
	}
}

// StatusHandler returns the current progress snapshot.
// GET /v1/applications/:id/status?lastVersion=N
// Returns 200 with the snapshot, 304 when the caller already has the latest
// version, 404 when no progress record exists.
func (h *ProgressHandler) StatusHandler(c *gin.Context) {
	applicationID, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var query dto.StatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := query.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	progress, err := h.progressUseCase.Get(c.Request.Context(), applicationID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if query.LastVersion > 0 && progress.Version <= query.LastVersion {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, dto.NewProgressResponse(progress))
}

// StreamHandler pushes progress events over server-sent events.
// GET /v1/applications/:id/progress/stream
// The stream carries only events from subscription time forward; a client
// that needs the current state polls the status endpoint first.
func (h *ProgressHandler) StreamHandler(c *gin.Context) {
	applicationID, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	events, cancel := h.progressUseCase.Subscribe(applicationID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("progress", event)
			return !event.Status.IsTerminal()
		}
	})
}

// parseApplicationID extracts and validates the application ID path parameter.
func parseApplicationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid application id %q", c.Param("id"))
	}
	return id, nil
}

// Approver approves a pending application.
type Approver interface {
	Approve(ctx context.Context, applicationID int64) error
}

// ApprovalHandler handles HTTP requests for application approval.
type ApprovalHandler struct {
	approvalUseCase Approver
	logger          *slog.Logger
}

// NewApprovalHandler creates a new approval handler.
func NewApprovalHandler(approvalUseCase Approver, logger *slog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		approvalUseCase: approvalUseCase,
		logger:          logger,
	}
}

// ApproveHandler approves a pending application and enqueues its registration task.
// POST /v1/applications/:id/approve
// Returns 202 Accepted: generation happens asynchronously.
func (h *ApprovalHandler) ApproveHandler(c *gin.Context) {
	applicationID, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.approvalUseCase.Approve(c.Request.Context(), applicationID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.ApprovalResponse{
		ApplicationID: applicationID,
		Status:        string(domain.ApplicationStatusApproved),
	})
}
