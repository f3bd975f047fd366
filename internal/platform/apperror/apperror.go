package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pet-vaccination-clinic/internal/platform/logger"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindValidation       Kind = "validation"
	KindConflict         Kind = "conflict"
	KindUnauthorized     Kind = "unauthorized"
	KindInternal         Kind = "internal"
)

// Error es un error de dominio con un código estable visible para el cliente.
// Message se devuelve tal cual; Err queda solo para logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara por Code, así errors.Is(err, ErrXxx) funciona con sentinels de los paquetes de dominio.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Wrap devuelve una copia con la causa adjunta.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage devuelve una copia con otro mensaje (mismo código).
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func PermissionDenied(code, msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Code: code, Message: msg}
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Unauthorized(code, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// As extrae el *Error de una cadena; nil si no es un error de dominio.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

func KindOf(err error) Kind {
	if ae := As(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Write traduce err a una respuesta JSON.
// Los errores no clasificados se loguean completos y al cliente solo le llega "internal error".
func Write(w http.ResponseWriter, log logger.Logger, err error) {
	ae := As(err)
	if ae == nil || ae.Kind == KindInternal {
		if log != nil {
			log.Error("unhandled error", map[string]any{"error": err})
		}
		ae = Internal(err)
	} else if log != nil {
		log.Debug("request rejected", map[string]any{"code": ae.Code, "error": err})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(ae.Kind))
	_ = json.NewEncoder(w).Encode(body{Error: ae.Code, Message: ae.Message})
}
