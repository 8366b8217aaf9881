package cache

import (
	"context"
	"time"
)

// Cache define la interfaz para una caché de clave-valor genérica.
// Los valores se guardan serializados en JSON.
type Cache interface {
	// Get intenta poblar 'dest' (que debe ser un puntero) con el valor asociado a la 'key'.
	// Devuelve (true, nil) si hay un 'hit' y (false, nil) si es un 'miss'.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set guarda el valor con un TTL. ttl <= 0 usa el TTL por defecto de la implementación.
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	// SetIfAbsent guarda el valor solo si la key no existe. Devuelve true si lo guardó.
	SetIfAbsent(ctx context.Context, key string, val interface{}, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}
