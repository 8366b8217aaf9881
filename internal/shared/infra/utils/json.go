package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UnmarshalAndHandle decodifica data en T y se lo pasa a handler.
// Un payload que no se puede decodificar se registra y se descarta (devuelve nil):
// reintentarlo nunca va a funcionar.
func UnmarshalAndHandle[T any](log *zap.Logger, data json.RawMessage, handler func(T) error) error {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.Error(err))
		return nil
	}
	return handler(evt)
}
