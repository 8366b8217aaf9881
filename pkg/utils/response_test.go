package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(RequestIDKey, requestID)
	}
	return c, w
}

func TestSendFieldError_CarriesCodeFieldAndRequestID(t *testing.T) {
	c, w := newTestContext("req-1")

	SendFieldError(c, "amount", "amount: must be > 0")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"code":"validation_failed","message":"amount: must be > 0","field":"amount","request_id":"req-1"}}`, w.Body.String())
}

func TestSendError_Codes(t *testing.T) {
	tests := []struct {
		name   string
		send   func(c *gin.Context)
		status int
		code   string
	}{
		{name: "bad request", send: func(c *gin.Context) { SendBadRequest(c, "x") }, status: http.StatusBadRequest, code: CodeInvalidRequest},
		{name: "not found", send: func(c *gin.Context) { SendNotFound(c, "x") }, status: http.StatusNotFound, code: CodeNotFound},
		{name: "internal", send: func(c *gin.Context) { SendInternalServerError(c, "x") }, status: http.StatusInternalServerError, code: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext("")
			tt.send(c)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, `{"error":{"code":"`+tt.code+`","message":"x"}}`, w.Body.String())
		})
	}
}

func TestSendSuccess(t *testing.T) {
	c, w := newTestContext("req-2")

	SendSuccess(c, http.StatusOK, gin.H{"replayed": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"replayed":1}}`, w.Body.String())
}
