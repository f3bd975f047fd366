package storage

import "errors"

// Sentinels que devuelven todos los adapters de storage (memory/postgres).
// Los services los traducen a errores de dominio con errors.Is.
var (
	ErrNotFound   = errors.New("storage: not found")
	ErrDuplicate  = errors.New("storage: duplicate key")
	ErrReferenced = errors.New("storage: row is still referenced")
	// ErrInvalid: el valor no entra en la columna (largo, precisión o CHECK).
	ErrInvalid = errors.New("storage: value does not fit column")
)
