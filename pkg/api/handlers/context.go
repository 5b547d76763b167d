package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"contextdb/pkg/codec"
	"contextdb/pkg/logger"
	"contextdb/pkg/models"
	"contextdb/pkg/store"
	"contextdb/pkg/utils"
	"contextdb/pkg/validation"
)

// API bundles the handlers for the context surface around an injected
// conversation store.
type API struct {
	Store store.Store
	// MaxBodyBytes caps POST/PUT request bodies; zero means no cap.
	MaxBodyBytes int64
}

// Register installs the context routes on the router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/context", a.getContext).Methods(http.MethodGet)
	r.HandleFunc("/context", a.postContext).Methods(http.MethodPost)
	r.HandleFunc("/context", a.putContext).Methods(http.MethodPut)
	r.HandleFunc("/context", a.deleteContext).Methods(http.MethodDelete)
	r.HandleFunc("/context/download", a.downloadContext).Methods(http.MethodGet)

	r.HandleFunc("/admin/contexts", a.listContexts).Methods(http.MethodGet)
}

// chatID extracts and sanitizes the chatId query parameter. On failure it
// writes the 400 response and returns false.
func chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("chatId")
	if raw == "" {
		utils.JSONError(w, http.StatusBadRequest, "chatId is required")
		return "", false
	}
	id, err := validation.SanitizeChatID(raw)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid chatId")
		return "", false
	}
	return id, true
}

// storeError translates store failures into HTTP responses. Internal detail
// stays in the server log; clients get a generic message.
func storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidChatID):
		utils.JSONError(w, http.StatusBadRequest, "invalid chatId")
	case errors.Is(err, store.ErrUnauthorized):
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "no chat history found for this id")
	default:
		logger.Error("store_op_failed", "op", op, "path", r.URL.Path, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "storage failure")
	}
}

// getContext returns the full ordered log as a JSON array. An absent log is
// a new conversation, not an error.
func (a *API) getContext(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	recs, err := a.Store.Fetch(r.Context(), id)
	if err != nil {
		storeError(w, r, "fetch", err)
		return
	}
	logger.Debug("context_fetched", "chat", id, "count", len(recs))
	_ = utils.JSONWrite(w, http.StatusOK, recs)
}

// postContext appends one message. The body is either {"text": ...} or the
// {"sender": ..., "content": ...} pair; both carry an optional embedding.
func (a *API) postContext(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Sender    string          `json:"sender"`
		Text      string          `json:"text"`
		Content   string          `json:"content"`
		Embedding json.RawMessage `json:"embedding"`
	}
	body := a.body(r)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	text := payload.Text
	if text == "" {
		text = payload.Content
	}
	rec := models.MessageRecord{Sender: payload.Sender, Text: text, Embedding: payload.Embedding}
	if err := validation.ValidateRecord(rec); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.Store.Append(r.Context(), id, rec)
	if err != nil {
		storeError(w, r, "append", err)
		return
	}
	logger.Info("message_created", "chat", id, "msg_id", out.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, out)
}

// putContext replaces the whole log with an uploaded JSONL blob. Every line
// is validated before anything is committed; a single bad line rejects the
// upload and leaves the stored log untouched.
func (a *API) putContext(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	blob, err := io.ReadAll(a.body(r))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	recs, err := codec.DecodeAll(blob)
	if err != nil {
		var mle *codec.MalformedLineError
		if errors.As(err, &mle) {
			utils.JSONError(w, http.StatusBadRequest, mle.Error())
			return
		}
		utils.JSONError(w, http.StatusBadRequest, "invalid line-delimited JSON")
		return
	}
	if err := a.Store.Overwrite(r.Context(), id, recs); err != nil {
		storeError(w, r, "overwrite", err)
		return
	}
	logger.Info("context_replaced", "chat", id, "records", len(recs))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"message": "chat history replaced successfully",
		"records": len(recs),
	})
}

// deleteContext removes one record when messageId is given, the whole log
// otherwise. Deleting an already-missing record or log is a no-op success.
func (a *API) deleteContext(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if msgID := r.URL.Query().Get("messageId"); msgID != "" {
		if err := a.Store.DeleteOne(r.Context(), id, msgID); err != nil {
			storeError(w, r, "delete_one", err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"message": "message deleted successfully"})
		return
	}
	if err := a.Store.DeleteAll(r.Context(), id); err != nil {
		storeError(w, r, "delete_all", err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"message": "chat history deleted successfully"})
}

func (a *API) body(r *http.Request) io.Reader {
	if a.MaxBodyBytes > 0 {
		return http.MaxBytesReader(nil, r.Body, a.MaxBodyBytes)
	}
	return r.Body
}
