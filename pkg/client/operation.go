package client

import (
	"net/http"
	"sync"
)

// Operation names one logical backend call and owns its error-code table.
type Operation struct {
	Name string

	// Errors maps an HTTP status to a message key.
	Errors map[int]string
}

// ErrorFor returns the API error for status, falling back to the general key
// when the status is unmapped.
func (o Operation) ErrorFor(status int) *APIError {
	class := classifyStatus(status)
	if class == "" {
		// A non-error status that still failed the decoder
		class = ErrorClassDecode
	}
	if key, ok := o.Errors[status]; ok {
		return &APIError{
			Code:       status,
			MessageKey: key,
			Class:      class,
			Operation:  o.Name,
		}
	}
	return NewGeneralError(o.Name, class, status, nil)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Operation{}
)

// Register adds op to the registry of known operations and returns it.
// Intended for package-level var initialization.
func Register(op Operation) Operation {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[op.Name] = op
	return op
}

// LookupOperation returns the registered operation with the given name.
func LookupOperation(name string) (Operation, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	op, ok := registry[name]
	return op, ok
}

// LookupError maps (operation, status) to an API error. Unknown operations
// map to the general error.
func LookupError(name string, status int) *APIError {
	op, ok := LookupOperation(name)
	if !ok {
		class := classifyStatus(status)
		if class == "" {
			class = ErrorClassDecode
		}
		return NewGeneralError(name, class, status, nil)
	}
	return op.ErrorFor(status)
}

// validMethod reports whether method is one the backend contract allows.
func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
