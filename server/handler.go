package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"solver_gateway/errs"
	"solver_gateway/identity"
	"solver_gateway/orchestrator"
)

type answerRequest struct {
	Question string `json:"question"`
	// AccountID is optional; when present it must match the bearer token.
	AccountID string `json:"account_id,omitempty"`
}

type answerResponse struct {
	Answer string `json:"answer"`
	Cached bool   `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	answerer     Answerer
	log          *slog.Logger
	maxBodyBytes int64
}

func (h *handler) answer(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Failed to parse request body"})
		return
	}

	// A missing or malformed header leaves the proof empty; the orchestrator
	// rejects it as unauthenticated.
	token, _ := identity.BearerToken(c.GetHeader("Authorization"))

	res, err := h.answerer.AnswerQuestion(c.Request.Context(), orchestrator.Request{
		AccountID: req.AccountID,
		Question:  req.Question,
		AuthProof: token,
	})
	if err != nil {
		status := errs.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("answer request failed", "error", err, "upstream", errs.UpstreamOf(err),
				"request_id", c.GetString(requestIDKey))
		} else {
			h.log.Info("answer request rejected", "status", status, "code", errs.CodeOf(err),
				"request_id", c.GetString(requestIDKey))
		}
		c.JSON(status, errorResponse{Error: errs.PublicMessage(err)})
		return
	}

	c.JSON(http.StatusOK, answerResponse{Answer: res.Answer, Cached: res.Cached})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
