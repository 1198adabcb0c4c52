package response

import (
	"encoding/json"
	"io"
	"net/http"
)

// DecodeJSON decodes the request body into v.
func DecodeJSON(body io.ReadCloser, v interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

// JSON writes a payload as-is. Successful responses carry the domain
// object directly, no envelope.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func OK(w http.ResponseWriter, data interface{})      { JSON(w, http.StatusOK, data) }
func Created(w http.ResponseWriter, data interface{}) { JSON(w, http.StatusCreated, data) }
func NoContent(w http.ResponseWriter)                 { w.WriteHeader(http.StatusNoContent) }

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error writes the flat error shape clients classify on: the code in
// "error", a human line in "message".
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorBody{Error: code, Message: message})
}

func BadRequest(w http.ResponseWriter, code, message string) {
	Error(w, http.StatusBadRequest, code, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "unauthorized", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "not_authorized", message)
}

func NotFound(w http.ResponseWriter, code, message string) {
	Error(w, http.StatusNotFound, code, message)
}

func Conflict(w http.ResponseWriter, code, message string) {
	Error(w, http.StatusConflict, code, message)
}

func ValidationError(w http.ResponseWriter, fields map[string]string) {
	msg := "validation failed"
	for name, detail := range fields {
		msg = name + ": " + detail
		break
	}
	Error(w, http.StatusBadRequest, "validation_failed", msg)
}

func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
