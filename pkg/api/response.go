package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/middleware"
)

// ErrorBody is the error half of every failed response
type ErrorBody struct {
	Code    string                     `json:"code"`
	Reason  string                     `json:"reason,omitempty"`
	Message string                     `json:"message"`
	Details lifecycle.ValidationErrors `json:"details,omitempty"`
}

// Error codes that do not come from the lifecycle engines
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL_ERROR"
)

var kindStatus = map[lifecycle.Kind]int{
	lifecycle.KindValidation:           http.StatusBadRequest,
	lifecycle.KindInvalidTemporalOrder: http.StatusBadRequest,
	lifecycle.KindNotFound:             http.StatusNotFound,
	lifecycle.KindDuplicateKey:         http.StatusConflict,
	lifecycle.KindInvalidState:         http.StatusConflict,
	lifecycle.KindInvalidReference:     http.StatusUnprocessableEntity,
	lifecycle.KindSystem:               http.StatusInternalServerError,
}

// StatusFor maps a lifecycle failure to its HTTP status
func StatusFor(kind lifecycle.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFailure(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondError writes err as a structured failure. System errors keep their cause out of the body.
func respondError(c *gin.Context, err error) {
	var lerr *lifecycle.Error
	if !errors.As(err, &lerr) {
		logrus.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Error("Unclassified handler error")
		respondFailure(c, http.StatusInternalServerError, ErrorBody{
			Code:    CodeInternal,
			Message: "An unexpected error occurred",
		})
		return
	}

	_ = c.Error(err)
	body := ErrorBody{
		Code:    string(lerr.Kind),
		Reason:  lerr.Reason,
		Message: lerr.Message,
		Details: lerr.Fields,
	}
	if lerr.Kind == lifecycle.KindSystem {
		body.Message = "An unexpected error occurred"
	}
	respondFailure(c, StatusFor(lerr.Kind), body)
}

func respondInvalid(c *gin.Context, fields lifecycle.ValidationErrors) {
	respondFailure(c, http.StatusBadRequest, ErrorBody{
		Code:    string(lifecycle.KindValidation),
		Reason:  lifecycle.ReasonInvalidFields,
		Message: "validation failed: " + fields.Error(),
		Details: fields,
	})
}

func respondBadJSON(c *gin.Context, err error) {
	respondFailure(c, http.StatusBadRequest, ErrorBody{
		Code:    CodeInvalidRequest,
		Message: "malformed request body: " + err.Error(),
	})
}

func respondNotFound(c *gin.Context, reason, message string) {
	respondFailure(c, http.StatusNotFound, ErrorBody{
		Code:    string(lifecycle.KindNotFound),
		Reason:  reason,
		Message: message,
	})
}
