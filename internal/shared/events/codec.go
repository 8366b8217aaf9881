package events

import (
	"bytes"
	"encoding/json"
)

// Marshal serializa el payload de forma determinista.
// encoding/json ordena las claves de los mapas, así que el mismo payload lógico
// produce siempre los mismos bytes (necesario para consumidores idempotentes).
func Marshal(payload map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	// Encode añade un '\n' final
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal decodifica un payload serializado con Marshal.
// Los números se conservan como json.Number para no perder precisión en un replay.
func Unmarshal(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
