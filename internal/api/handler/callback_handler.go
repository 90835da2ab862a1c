package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// OutcomeQueue is the interface the handler uses to enqueue backend outcomes.
type OutcomeQueue interface {
	Enqueue(outcome ports.BackendOutcome)
}

// CallbackHandler accepts asynchronous results pushed by the media backend.
type CallbackHandler struct {
	queue OutcomeQueue
	now   func() time.Time
}

func NewCallbackHandler(queue OutcomeQueue) *CallbackHandler {
	return &CallbackHandler{queue: queue, now: time.Now}
}

// Receive enqueues a single backend outcome and returns 202.
//
// @Summary      Receive a backend outcome
// @Tags         backend
// @Accept       json
// @Produce      json
// @Param        X-Backend-Token  header    string                  true  "Shared callback token"
// @Param        body             body      backendCallbackRequest  true  "Job outcome"
// @Success      202              {object}  acceptedResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Router       /v1/backend/callback [post]
func (h *CallbackHandler) Receive(c echo.Context) error {
	var req backendCallbackRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkCallback(req); err != nil {
		return err
	}

	h.queue.Enqueue(h.outcome(req))
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "outcome accepted"})
}

// ReceiveBatch enqueues a batch of outcomes. The batch is rejected as a whole
// if any item is invalid.
//
// @Summary      Receive a batch of backend outcomes
// @Tags         backend
// @Accept       json
// @Produce      json
// @Param        X-Backend-Token  header    string                    true  "Shared callback token"
// @Param        body             body      []backendCallbackRequest  true  "Job outcomes"
// @Success      202              {object}  acceptedResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Router       /v1/backend/callback/batch [post]
func (h *CallbackHandler) ReceiveBatch(c echo.Context) error {
	var reqs []backendCallbackRequest
	if err := c.Bind(&reqs); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("%w: batch cannot be empty", domain.ErrInvalidRequest)
	}

	outcomes := make([]ports.BackendOutcome, 0, len(reqs))
	for i, req := range reqs {
		if err := c.Validate(&req); err != nil {
			return fmt.Errorf("%w: outcome[%d]: %s", domain.ErrInvalidRequest, i, err.Error())
		}
		if err := checkCallback(req); err != nil {
			return fmt.Errorf("outcome[%d]: %w", i, err)
		}
		outcomes = append(outcomes, h.outcome(req))
	}

	for _, o := range outcomes {
		h.queue.Enqueue(o)
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "outcomes accepted", Count: len(outcomes)})
}

func (h *CallbackHandler) outcome(req backendCallbackRequest) ports.BackendOutcome {
	o := toOutcome(req)
	o.ReceivedAt = h.now().UTC()
	return o
}

func checkCallback(req backendCallbackRequest) error {
	if req.Status == string(domain.StatusCompleted) && req.ResultURL == "" {
		return fmt.Errorf("%w: result_url is required for completed outcomes", domain.ErrInvalidRequest)
	}
	return nil
}
