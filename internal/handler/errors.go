package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/blitznow/ridertraining/internal/middleware"
	"github.com/blitznow/ridertraining/internal/model"
)

// envelope は {message, data, error} 形式のレスポンスボディ。
// 成功時はerrorを省略し、失敗時はdataをnullにする。
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	ErrorID string `json:"error_id,omitempty"`
}

// handleServiceError はサービス層のエラーを {"error": ...} 形式のレスポンスに変換する。
// APIError以外はerror_idを採番してログに残し、内部メッセージは返さない。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteError(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
		return
	}

	errorID := logInternalError(r, logger, err)
	middleware.WriteInternalServerError(w, errorID)
}

// handleEnvelopeError はサービス層のエラーを {message, data, error} 形式のレスポンスに変換する。
func handleEnvelopeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == model.ErrCodeUnknownAction {
			message = "Unknown action"
		}
		middleware.WriteJSON(w, mapAPIErrorToHTTPStatus(apiErr), envelope{
			Message: message,
			Error:   apiErr.Message,
		})
		return
	}

	errorID := logInternalError(r, logger, err)
	middleware.WriteJSON(w, http.StatusInternalServerError, envelope{
		Message: message,
		Error:   middleware.InternalErrorMessage,
		ErrorID: errorID,
	})
}

func logInternalError(r *http.Request, logger *slog.Logger, err error) string {
	errorID := middleware.NewErrorID()
	logger.ErrorContext(r.Context(), "internal server error",
		slog.String("error_id", errorID),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	return errorID
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードをHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingParameter, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeRiderDayUnknown, model.ErrCodeUnknownAction:
		return http.StatusBadRequest
	case model.ErrCodeRiderNotFound, model.ErrCodeProgressNotFound, model.ErrCodeTutorialNotFound:
		return http.StatusNotFound
	case model.ErrCodeTutorialExists:
		return http.StatusConflict
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
