package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 100
)

type notificationRequest struct {
	Provider  string     `json:"provider" validate:"required,max=30"`
	Sender    string     `json:"sender" validate:"required,max=64"`
	Text      string     `json:"text" validate:"required,max=2000"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type bulkRequest struct {
	Messages []notificationRequest `json:"messages" validate:"required,min=1,max=100,dive"`
}

type manualVerifyRequest struct {
	Provider        string `json:"provider" validate:"required"`
	TransactionCode string `json:"transaction_code" validate:"required,alphanum,min=5,max=64"`
}

type outcomeView struct {
	ConfirmationID uint             `json:"confirmation_id"`
	Status         string           `json:"status"`
	Processed      bool             `json:"processed"`
	Transaction    *transactionView `json:"transaction,omitempty"`
	Error          *errorBody       `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"service":   "sms-intake",
	})
}

func (s *Server) receive(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.submit(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  view,
		"sender":  maskSender(req.Sender),
	})
}

// bulkReceive handles each message in order; one failing message does not
// stop the rest.
func (s *Server) bulkReceive(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	results := make([]*outcomeView, 0, len(req.Messages))
	processed := 0
	for _, msg := range req.Messages {
		view, err := s.submit(r.Context(), msg)
		if err != nil {
			view = &outcomeView{Error: errorOf(err)}
		}
		if view.Processed {
			processed++
		}
		results = append(results, view)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"total":     len(results),
		"processed": processed,
		"results":   results,
	})
}

// submit returns an error only when the notification could not be stored.
func (s *Server) submit(ctx context.Context, req notificationRequest) (*outcomeView, error) {
	n := services.RawNotification{
		Provider: req.Provider,
		Sender:   strings.TrimSpace(req.Sender),
		Text:     req.Text,
	}
	if req.Timestamp != nil {
		n.ObservedAt = *req.Timestamp
	}
	out, err := s.cfg.Matcher.Submit(ctx, n)
	if out == nil {
		if err == nil {
			err = errors.New(errors.ErrCodeInternalError, "no outcome")
		}
		return nil, err
	}
	view := &outcomeView{
		ConfirmationID: out.Confirmation.ID,
		Status:         out.Status,
		Processed:      out.Processed(),
		Transaction:    viewOf(out.Transaction),
		Error:          errorOf(err),
	}
	if out.Processed() && s.cfg.Notifier != nil {
		s.cfg.Notifier.NotifyCompleted(ctx, out.Transaction)
	}
	return view, nil
}

func (s *Server) testParse(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	text := r.URL.Query().Get("text")
	if provider == "" || text == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "provider and text are required", nil)
		return
	}
	event, err := s.cfg.Matcher.TestParse(provider, text)
	if errors.Is(err, errors.ErrCodeNoMatch) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "parsed": false})
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"parsed":  true,
		"result": map[string]interface{}{
			"provider":         event.Provider,
			"amount":           event.Amount,
			"counterparty":     event.Counterparty,
			"transaction_code": event.Reference,
			"pattern":          event.Pattern,
		},
	})
}

func (s *Server) manualVerify(w http.ResponseWriter, r *http.Request) {
	var req manualVerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	operator := services.APIActor(claimsFrom(r.Context()).Client)
	t, err := s.cfg.Matcher.ManualVerify(r.Context(), req.Provider, req.TransactionCode, operator)
	if err != nil {
		writeAppError(w, err)
		return
	}
	logger.Info("Transaction verified manually", "tx_id", t.ID, "by", operator)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.NotifyCompleted(r.Context(), t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": viewOf(t),
	})
}

// pendingTransactions lists pending rows created within the last hours
// (default 24), optionally for one provider and kind.
func (s *Server) pendingTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours, ok := queryInt(w, q.Get("hours"), 24)
	if !ok {
		return
	}
	kind := q.Get("kind")
	if kind != "" && !models.IsValidKind(kind) {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "unknown kind", nil)
		return
	}
	provider := ""
	if raw := q.Get("provider"); raw != "" {
		key, known := services.NormalizeProvider(raw)
		if !known {
			writeError(w, http.StatusBadRequest, errors.ErrCodeUnknownProvider, "unknown provider", nil)
			return
		}
		provider = key
	}

	txs, err := s.cfg.Ledger.ListPending(r.Context(), kind, defaultListLimit*5)
	if err != nil {
		writeAppError(w, err)
		return
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	views := make([]*transactionView, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		if t.CreatedAt.Before(cutoff) || (provider != "" && t.Provider != provider) {
			continue
		}
		views = append(views, viewOf(t))
		if len(views) == defaultListLimit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"count":        len(views),
		"transactions": views,
	})
}

func (s *Server) unmatched(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r.URL.Query().Get("limit"), 50)
	if !ok {
		return
	}
	items, err := s.cfg.Matcher.ListUnmatched(r.Context(), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, c := range items {
		out = append(out, map[string]interface{}{
			"id":               c.ID,
			"provider":         c.Provider,
			"status":           c.Status,
			"amount":           c.Amount,
			"transaction_code": c.Reference,
			"text":             c.RawText,
			"note":             c.Note,
			"observed_at":      c.ObservedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"count":         len(out),
		"confirmations": out,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "malformed JSON body", nil)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "expected a positive integer", nil)
		return 0, false
	}
	return v, true
}

func maskSender(sender string) string {
	if len(sender) <= 6 {
		return "****"
	}
	return sender[:3] + "****" + sender[len(sender)-3:]
}
