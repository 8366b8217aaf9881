package events

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBool    FieldType = "bool"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
)

// FieldRule describe un campo del payload.
// Rules es una etiqueta de validator/v10 (ej. "gt=0", "max=64") aplicada al valor.
type FieldRule struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Rules    string    `json:"rules,omitempty"`
}

// Schema es el contrato de payload registrado para un topic.
type Schema struct {
	Topic        string               `json:"-"`
	Fields       map[string]FieldRule `json:"fields"`
	AllowUnknown bool                 `json:"allow_unknown"`
}

// SchemaRegistry guarda un schema por topic. Seguro para uso concurrente.
type SchemaRegistry struct {
	mu       sync.RWMutex
	schemas  map[string]Schema
	validate *validator.Validate
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas:  make(map[string]Schema),
		validate: validator.New(),
	}
}

// Register añade o reemplaza el schema de un topic.
func (r *SchemaRegistry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Topic] = s
}

func (r *SchemaRegistry) Lookup(topic string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[topic]
	return s, ok
}

// Load lee schemas adicionales en JSON: {"<topic>": {"fields": {...}, "allow_unknown": bool}}
func (r *SchemaRegistry) Load(reader io.Reader) error {
	var raw map[string]Schema
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return fmt.Errorf("invalid schema file: %w", err)
	}
	for topic, s := range raw {
		s.Topic = topic
		r.Register(s)
	}
	return nil
}

// Validate comprueba el payload contra el schema del topic.
// Devuelve *ValidationError en cualquier incumplimiento.
func (r *SchemaRegistry) Validate(topic string, payload map[string]interface{}) error {
	s, ok := r.Lookup(topic)
	if !ok {
		return &sharedDomain.ValidationError{Reason: fmt.Sprintf("%s: %q", sharedDomain.ErrSchemaNotFound, topic)}
	}
	if len(payload) == 0 {
		return &sharedDomain.ValidationError{Reason: "empty payload"}
	}

	// Orden estable para que el primer error reportado sea siempre el mismo.
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := s.Fields[name]
		val, present := payload[name]
		if !present || val == nil {
			if rule.Required {
				return sharedDomain.NewValidationError(name, "required")
			}
			continue
		}
		normalized, err := checkType(rule.Type, val)
		if err != nil {
			return sharedDomain.NewValidationError(name, err.Error())
		}
		if rule.Rules != "" {
			if err := r.validate.Var(normalized, rule.Rules); err != nil {
				return sharedDomain.NewValidationError(name, describe(err))
			}
		}
	}

	if !s.AllowUnknown {
		for name := range payload {
			if _, known := s.Fields[name]; !known {
				return sharedDomain.NewValidationError(name, "unknown field")
			}
		}
	}
	return nil
}

// checkType valida el tipo y devuelve el valor normalizado para validator
// (json.Number y enteros pasan a float64).
func checkType(t FieldType, val interface{}) (interface{}, error) {
	switch t {
	case FieldString:
		if s, ok := val.(string); ok {
			return s, nil
		}
	case FieldNumber, FieldInteger:
		f, ok := toFloat(val)
		if !ok {
			break
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("must be a finite number")
		}
		if t == FieldInteger && f != math.Trunc(f) {
			return nil, fmt.Errorf("must be an integer")
		}
		return f, nil
	case FieldBool:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	case FieldObject:
		if m, ok := val.(map[string]interface{}); ok {
			return m, nil
		}
	case FieldArray:
		if reflect.TypeOf(val).Kind() == reflect.Slice {
			return val, nil
		}
	default:
		return val, nil
	}
	return nil, fmt.Errorf("must be of type %s", t)
}

func toFloat(val interface{}) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func describe(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("failed rule %s=%s", fe.Tag(), fe.Param())
		}
		return "failed rule " + fe.Tag()
	}
	return err.Error()
}
