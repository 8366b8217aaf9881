package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
)

func TestDomainEvent_IsImmutable(t *testing.T) {
	payload := map[string]interface{}{
		"identifier": "A1",
		"meta":       map[string]interface{}{"source": "web"},
	}
	evt := NewDomainEvent("order.events", "A1", payload)

	// Mutar el mapa original no afecta al evento
	payload["identifier"] = "B2"
	payload["meta"].(map[string]interface{})["source"] = "batch"

	// Mutar la copia devuelta tampoco
	got := evt.Payload()
	got["identifier"] = "C3"

	again := evt.Payload()
	assert.Equal(t, "A1", again["identifier"])
	assert.Equal(t, "web", again["meta"].(map[string]interface{})["source"])
	assert.Equal(t, "A1", evt.PartitionKey())
	assert.False(t, evt.CreatedAt().IsZero())
}

func TestMarshal_IsDeterministic(t *testing.T) {
	a := map[string]interface{}{"identifier": "A1", "amount": 100, "nested": map[string]interface{}{"z": 1, "a": "<b>"}}
	b := map[string]interface{}{"nested": map[string]interface{}{"a": "<b>", "z": 1}, "amount": 100.0, "identifier": "A1"}

	first, err := Marshal(a)
	require.NoError(t, err)
	second, err := Marshal(a)
	require.NoError(t, err)
	third, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, `{"amount":100,"identifier":"A1","nested":{"a":"<b>","z":1}}`, string(first))
}

func TestMarshal_RoundTripKeepsBytes(t *testing.T) {
	original, err := Marshal(map[string]interface{}{"identifier": "A1", "amount": 12.5})
	require.NoError(t, err)

	decoded, err := Unmarshal(original)
	require.NoError(t, err)

	again, err := Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func orderSchema() Schema {
	return Schema{
		Topic: "order.events",
		Fields: map[string]FieldRule{
			"identifier": {Type: FieldString, Required: true, Rules: "min=1,max=8"},
			"amount":     {Type: FieldNumber, Required: true, Rules: "gt=0"},
			"quantity":   {Type: FieldInteger},
		},
	}
}

func TestSchemaRegistry_Validate(t *testing.T) {
	reg := NewSchemaRegistry()
	reg.Register(orderSchema())

	tests := []struct {
		name    string
		topic   string
		payload map[string]interface{}
		field   string
	}{
		{name: "valido", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": 100}},
		{name: "valido con opcional", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": 1.5, "quantity": 3}},
		{name: "falta amount", topic: "order.events", payload: map[string]interface{}{"identifier": "A1"}, field: "amount"},
		{name: "amount no numérico", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": "100"}, field: "amount"},
		{name: "amount negativo", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": -1}, field: "amount"},
		{name: "identifier demasiado largo", topic: "order.events", payload: map[string]interface{}{"identifier": "ABCDEFGHIJ", "amount": 1}, field: "identifier"},
		{name: "quantity no entero", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": 1, "quantity": 1.5}, field: "quantity"},
		{name: "campo desconocido", topic: "order.events", payload: map[string]interface{}{"identifier": "A1", "amount": 1, "extra": true}, field: "extra"},
		{name: "topic sin schema", topic: "missing", payload: map[string]interface{}{"identifier": "A1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Validate(tt.topic, tt.payload)
			if tt.field == "" && tt.topic == "order.events" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *sharedDomain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestSchemaRegistry_Load(t *testing.T) {
	reg := NewSchemaRegistry()
	err := reg.Load(strings.NewReader(`{"payment.events": {"fields": {"id": {"type": "string", "required": true}}, "allow_unknown": true}}`))
	require.NoError(t, err)

	s, ok := reg.Lookup("payment.events")
	require.True(t, ok)
	assert.Equal(t, "payment.events", s.Topic)
	assert.True(t, s.AllowUnknown)

	assert.NoError(t, reg.Validate("payment.events", map[string]interface{}{"id": "p1", "other": 1}))
	assert.Error(t, reg.Validate("payment.events", map[string]interface{}{"other": 1}))

	assert.Error(t, reg.Load(strings.NewReader("not json")))
}

func TestNewDomainEventAt(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := NewDomainEventAt("t", "k", nil, ts)
	assert.Equal(t, ts, evt.CreatedAt())
	assert.Nil(t, evt.Payload())
}

func TestDomainEvent_ID(t *testing.T) {
	a := NewDomainEvent("t", "k", nil)
	b := NewDomainEvent("t", "k", nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID(), "cada evento nuevo tiene su propio id")

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	replayed := NewDomainEventWithID(a.ID(), "t", "k", map[string]interface{}{"identifier": "k"}, ts)
	assert.Equal(t, a.ID(), replayed.ID())
	assert.Equal(t, ts, replayed.CreatedAt())

	assert.NotEmpty(t, NewDomainEventWithID("", "t", "k", nil, ts).ID())
}
