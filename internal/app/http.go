package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"contextdb/pkg/api"
	"contextdb/pkg/auth"
	"contextdb/pkg/banner"
	"contextdb/pkg/metrics"
)

const shutdownGrace = 10 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/", api.Handler(a.st, a.eff.Config.Limits.MaxBodyBytes.Int64()))
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())
}

// readyzHandler handles the /readyz endpoint. Backends that hold an external
// connection expose a Ping; the others are ready once opened.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if p, ok := a.st.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// healthzHandler handles the /healthz endpoint.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) secConfig() auth.SecConfig {
	sec := a.eff.Config.Security
	cfg := auth.SecConfig{
		AllowedOrigins:   append([]string{}, sec.CORS.AllowedOrigins...),
		RPS:              sec.RateLimit.RPS,
		Burst:            sec.RateLimit.Burst,
		IPWhitelist:      append([]string{}, sec.IPWhitelist...),
		BackendKeys:      map[string]struct{}{},
		FrontendKeys:     map[string]struct{}{},
		AdminKeys:        map[string]struct{}{},
		SigningKeys:      map[string]struct{}{},
		RequirePrincipal: a.eff.Config.EffectiveRequirePrincipal(),
	}
	for _, k := range sec.APIKeys.Backend {
		cfg.BackendKeys[k] = struct{}{}
		cfg.SigningKeys[k] = struct{}{}
	}
	for _, k := range sec.APIKeys.Frontend {
		cfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range sec.APIKeys.Admin {
		cfg.AdminKeys[k] = struct{}{}
	}
	return cfg
}

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	secCfg := a.secConfig()

	// auth resolves the caller first, then the principal identity, and
	// metrics observes the request as a whole.
	wrapped := auth.ResolvePrincipal(secCfg)(mux)
	wrapped = auth.AuthenticateRequestMiddleware(secCfg)(wrapped)
	wrapped = metrics.Middleware(wrapped)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}
