package domain

import (
	"errors"
	"fmt"
)

// ---------- Errores compartidos ----------
var (
	ErrClientClosed   = errors.New("broker client closed")
	ErrSchemaNotFound = errors.New("schema not found for topic")
)

// ValidationError indica que la entrada del llamador es inválida. Nunca se reintenta.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError construye un ValidationError para un campo.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConnectionError se devuelve cuando el broker no es alcanzable tras agotar los intentos.
type ConnectionError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker %s unreachable after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError representa el fallo de un envío individual.
// Retryable distingue errores transitorios del broker (leader not available, timeouts)
// de errores definitivos (topic inexistente, mensaje demasiado grande...).
type SendError struct {
	Retryable bool
	Err       error
}

func (e *SendError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("send failed (%s): %v", kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryf y Permanentf son atajos para los adapters.
func Retryf(format string, args ...interface{}) *SendError {
	return &SendError{Retryable: true, Err: fmt.Errorf(format, args...)}
}

func Permanentf(format string, args ...interface{}) *SendError {
	return &SendError{Retryable: false, Err: fmt.Errorf(format, args...)}
}

// IsRetryable devuelve true solo si la cadena de errores contiene un SendError reintentable.
func IsRetryable(err error) bool {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Retryable
	}
	return false
}

// IsValidation devuelve true si el error proviene de una validación de entrada.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
