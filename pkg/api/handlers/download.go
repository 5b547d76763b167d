package handlers

import (
	"fmt"
	"net/http"

	"contextdb/pkg/codec"
	"contextdb/pkg/logger"
	"contextdb/pkg/utils"
)

// downloadContext materializes the full log as a JSONL attachment named
// after the chat id. Unlike plain fetch, an absent log here is a 404.
func (a *API) downloadContext(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	exists, err := a.Store.Exists(r.Context(), id)
	if err != nil {
		storeError(w, r, "exists", err)
		return
	}
	if !exists {
		utils.JSONError(w, http.StatusNotFound, "no chat history found for this id")
		return
	}
	recs, err := a.Store.Fetch(r.Context(), id)
	if err != nil {
		storeError(w, r, "fetch", err)
		return
	}

	w.Header().Set("Content-Type", "application/jsonl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".jsonl"))
	for i, m := range recs {
		line, err := codec.EncodeLine(m)
		if err != nil {
			// headers are already out; all we can do is cut the stream
			logger.Error("download_encode_failed", "chat", id, "error", err)
			return
		}
		if i > 0 {
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
		}
		if _, err := w.Write(line); err != nil {
			return
		}
	}
	logger.Info("context_downloaded", "chat", id, "records", len(recs))
}
