// Package response формирует единый JSON конверт ответов HTTP API:
// {"success": bool, "message": string, "data": ..., "kind": ..., "error": ...}
package response

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
)

// Envelope тело любого ответа API
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Kind    apperrors.Kind `json:"kind,omitempty"`
	Error   string         `json:"error,omitempty"` // только в режиме разработки
}

// Writer пишет ответы; в режиме разработки добавляет текст исходной ошибки
type Writer struct {
	development bool
}

// NewWriter создает Writer
func NewWriter(development bool) *Writer {
	return &Writer{development: development}
}

// JSON пишет успешный ответ
func (wr *Writer) JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, &Envelope{Success: true, Message: message, Data: data})
}

// Error переводит ошибку в статус и пишет конверт с видом ошибки.
// Внутренние ошибки логируются, клиенту уходит общее сообщение.
func (wr *Writer) Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	env := &Envelope{
		Success: false,
		Message: apperrors.MessageOf(err),
		Kind:    kind,
	}
	if wr.development {
		env.Error = err.Error()
	}
	write(w, status, env)
}

func write(w http.ResponseWriter, status int, env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

// Decode читает JSON тело запроса; неизвестные поля запрещены
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.KindValidation, "Request body is required")
		}
		return apperrors.Wrap(apperrors.KindValidation, "Invalid request body", err)
	}
	return nil
}
