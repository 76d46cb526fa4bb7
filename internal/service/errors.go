package service

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

type ErrorType int

const (
	ErrMappingNotFound ErrorType = iota
	ErrMissingParameter
	ErrParse
	ErrSerialize
	ErrUpstream
	ErrStore
	ErrUnknown
)

// ProxyError carries an error kind plus the title/id/operation it concerns.
type ProxyError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ProxyError {
	return &ProxyError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *ProxyError {
	return &ProxyError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *ProxyError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ProxyError) Unwrap() error {
	return e.Cause
}

func (e *ProxyError) WithContext(key string, value any) *ProxyError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrMappingNotFound:
		return "MappingNotFound"
	case ErrMissingParameter:
		return "MissingParameter"
	case ErrParse:
		return "Parse"
	case ErrSerialize:
		return "Serialize"
	case ErrUpstream:
		return "Upstream"
	case ErrStore:
		return "Store"
	default:
		return "Unknown"
	}
}

// StatusCode maps an error to the HTTP status a caller should see.
func StatusCode(err error) int {
	var proxyErr *ProxyError
	if !errors.As(err, &proxyErr) {
		return http.StatusInternalServerError
	}
	switch proxyErr.Type {
	case ErrMappingNotFound:
		return http.StatusNotFound
	case ErrMissingParameter:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Advice returns an operator hint for an error kind.
func Advice(err error) string {
	var proxyErr *ProxyError
	if !errors.As(err, &proxyErr) {
		return "Please review the detailed error information"
	}
	switch proxyErr.Type {
	case ErrMappingNotFound:
		return "Add the title or an alias to the mapping file and call /reload-mappings"
	case ErrMissingParameter:
		return "The request must carry a non-empty q parameter"
	case ErrParse, ErrSerialize:
		return "The indexer returned a feed that is not well-formed XML; check the indexer directly"
	case ErrUpstream:
		return "Check that the indexer and catalog are reachable and the API key is correct"
	case ErrStore:
		return "Check that the mapping store is readable and writable and holds at least one mapping"
	default:
		return "Please review the detailed error information"
	}
}

// LogError logs err together with its advice.
func LogError(err error) {
	log.Error("%v (advice: %s)", err, Advice(err))
}

func IsErrorType(err error, errorType ErrorType) bool {
	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		return proxyErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *ProxyError {
	return NewErrorWithCause(errorType, message, err)
}
