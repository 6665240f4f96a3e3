package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
}{
	JSON: "application/json",
	Text: "text/plain",
}

func WriteTextResponseOK(w http.ResponseWriter, message string) {
	WriteResponseBytes(w, ContentType.Text, []byte(message), http.StatusOK)
}

func WriteJSONResponseOK(w http.ResponseWriter, message string) {
	WriteResponseBytes(w, ContentType.JSON, []byte(message), http.StatusOK)
}

func WriteResponseBytesOK(w http.ResponseWriter, contentType string, message []byte) {
	WriteResponseBytes(w, contentType, message, http.StatusOK)
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Add("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

// SendJsonResponse marshals the payload and writes it with the given status code.
func SendJsonResponse(w http.ResponseWriter, statusCode int, payload any) {
	respBytes, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("send json response, marshal payload: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}

// SendJsonErrorResponse is used for error responses that carry a stable
// errorType tag, so clients can select user-facing copy without string matching.
func SendJsonErrorResponse(w http.ResponseWriter, statusCode int, message, errorType string) {
	SendJsonResponse(w, statusCode, struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		ErrorType string `json:"errorType"`
	}{
		Success:   false,
		Message:   message,
		ErrorType: errorType,
	})
}
