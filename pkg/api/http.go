package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"contextdb/pkg/api/handlers"
	"contextdb/pkg/store"
)

// Handler returns the context API router bound to the given store.
func Handler(st store.Store, maxBodyBytes int64) http.Handler {
	r := mux.NewRouter()
	a := &handlers.API{Store: st, MaxBodyBytes: maxBodyBytes}
	a.Register(r)

	// simple root help
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"endpoints":["GET /context?chatId=<id>","POST /context?chatId=<id>","PUT /context?chatId=<id>","DELETE /context?chatId=<id>[&messageId=<id>]","GET /context/download?chatId=<id>"]}`))
	})
	return r
}
