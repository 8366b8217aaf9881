package domain

import (
	sharedEvents "github.com/davicafu/orderbus/internal/shared/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	OrderCreated = "order.created"
)

const (
	StatusCreated = "created"
)

// DefaultOrderTopic se puede sobreescribir con ORDER_TOPIC.
const DefaultOrderTopic = "order.events"

// OrderSchema es el contrato del payload publicado en el topic de pedidos.
func OrderSchema(topic string) sharedEvents.Schema {
	return sharedEvents.Schema{
		Topic: topic,
		Fields: map[string]sharedEvents.FieldRule{
			"type":       {Type: sharedEvents.FieldString, Required: true, Rules: "oneof=" + OrderCreated},
			"identifier": {Type: sharedEvents.FieldString, Required: true, Rules: "min=1,max=128"},
			"amount":     {Type: sharedEvents.FieldNumber, Required: true, Rules: "gt=0"},
		},
	}
}

// NewSchemaRegistry devuelve un registro con el schema de pedidos ya cargado.
func NewSchemaRegistry(topic string) *sharedEvents.SchemaRegistry {
	reg := sharedEvents.NewSchemaRegistry()
	reg.Register(OrderSchema(topic))
	return reg
}
