package intake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type transactionView struct {
	ID          uint       `json:"id"`
	OrderNumber string     `json:"order_number,omitempty"`
	UserID      uint       `json:"user_id"`
	Kind        string     `json:"kind"`
	Amount      int64      `json:"amount"`
	NetAmount   int64      `json:"net_amount"`
	Provider    string     `json:"provider,omitempty"`
	Reference   string     `json:"transaction_code,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func viewOf(t *models.Transaction) *transactionView {
	if t == nil {
		return nil
	}
	v := &transactionView{
		ID:          t.ID,
		UserID:      t.UserID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		NetAmount:   t.NetAmount,
		Provider:    t.Provider,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.OrderNumber != nil {
		v.OrderNumber = *t.OrderNumber
	}
	if t.ExternalReference != nil {
		v.Reference = *t.ExternalReference
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errorBody{Code: code, Message: message, Details: details},
	})
}

// writeAppError maps an error to its HTTP status. Internal causes are logged,
// never echoed.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		logger.Error("Intake request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.ErrCodeInternalError, "internal error", nil)
		return
	}
	status := statusFor(appErr.Code)
	if status == http.StatusInternalServerError {
		logger.Error("Intake request failed", "error", err)
		writeError(w, status, appErr.Code, "internal error", nil)
		return
	}
	writeError(w, status, appErr.Code, appErr.Message, appErr.Details)
}

func writeValidationError(w http.ResponseWriter, err error) {
	details := make(map[string]interface{})
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Namespace()] = fe.Tag()
		}
	}
	writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "invalid request", details)
}

func errorOf(err error) *errorBody {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.As(err); ok {
		return &errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	return &errorBody{Code: errors.ErrCodeInternalError, Message: "internal error"}
}

func statusFor(code string) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeValidationFailed, errors.ErrCodeNoMatch, errors.ErrCodeUnknownProvider:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidTransition, errors.ErrCodeDuplicateReference, errors.ErrCodeAlreadyExists,
		errors.ErrCodeReconciliationMismatch:
		return http.StatusConflict
	case errors.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCodeNoCapacity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
