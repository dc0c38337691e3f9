package apiclient

import "fmt"

// authErrorMessage is deliberately generic: a 401/403 can mean bad
// credentials or a deactivated account, and the raw server payload must
// never leak through.
const authErrorMessage = "Invalid credentials or your account has been deactivated. " +
	"If your account is deactivated, please contact the administrator at admin@mail.ru"

// fallbackErrorMessage is used when an error response carries no usable
// error or detail field.
const fallbackErrorMessage = "Nie udało się pobrać danych z serwera"

// AuthError signals an HTTP 401 or 403 from the backend.
type AuthError struct{}

func (e *AuthError) Error() string {
	return authErrorMessage
}

// APIError is a structured 4xx/5xx with a server-supplied message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NetworkError means no response arrived at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("brak odpowiedzi serwera: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// errorBody is the shape of a structured backend error. The error field
// takes precedence over detail.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (b errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	if b.Detail != "" {
		return b.Detail
	}
	return fallbackErrorMessage
}
