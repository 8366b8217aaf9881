package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey es la clave del gin.Context donde el middleware deja el id de la petición.
const RequestIDKey = "request_id"

// Códigos estables que acompañan a cada error; los clientes deciden con ellos, no con el texto.
const (
	CodeInvalidRequest = "invalid_request"
	CodeValidation     = "validation_failed"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal_error"
)

// APIError es el cuerpo de todas las respuestas de error: {"error": {...}}.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SendSuccess envuelve el payload en {"data": ...}.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{"data": data})
}

// SendError responde con el código dado y el request id de la petición, si lo hay.
func SendError(c *gin.Context, statusCode int, apiErr APIError) {
	if apiErr.RequestID == "" {
		apiErr.RequestID = c.GetString(RequestIDKey)
	}
	c.JSON(statusCode, gin.H{"error": apiErr})
}

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message})
}

// SendFieldError indica qué campo de la petición no pasó la validación.
func SendFieldError(c *gin.Context, field, message string) {
	SendError(c, http.StatusBadRequest, APIError{Code: CodeValidation, Message: message, Field: field})
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, APIError{Code: CodeNotFound, Message: message})
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, APIError{Code: CodeInternal, Message: message})
}
