package handlers

import (
	"net/http"

	"contextdb/pkg/models"
	"contextdb/pkg/utils"
)

// listContexts is an operator endpoint (admin/backend keys only, enforced by
// the gateway) enumerating known conversations with their record counts.
func (a *API) listContexts(w http.ResponseWriter, r *http.Request) {
	ids, err := a.Store.List(r.Context())
	if err != nil {
		storeError(w, r, "list", err)
		return
	}
	out := make([]models.ConversationStat, 0, len(ids))
	for _, id := range ids {
		recs, err := a.Store.Fetch(r.Context(), id)
		if err != nil {
			storeError(w, r, "fetch", err)
			return
		}
		out = append(out, models.ConversationStat{ChatID: id, Records: len(recs)})
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Contexts []models.ConversationStat `json:"contexts"`
	}{Contexts: out})
}
