package api

import (
	"log/slog"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/gehhilfe/shopflux/audit"
	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/dispatch"
)

// RequestContext extracts the acting user from the request and attaches a
// request-scoped logger to the context. The actor falls back to anonymous
// when the identifying headers are absent, so every raised event still
// carries origin address and client agent.
func RequestContext(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := core.Anonymous()
		if userID := r.Header.Get("X-User-Id"); userID != "" {
			actor.UserID = userID
			actor.UserName = r.Header.Get("X-User-Name")
		}
		actor.RemoteAddr = r.RemoteAddr
		actor.UserAgent = r.UserAgent()

		ctx := core.WithActor(r.Context(), actor)
		ctx = slogctx.NewCtx(ctx, logger.With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("user_id", actor.UserID),
		))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewMux wires the audit read surface, the live stream, and the demo shop
// write routes.
func NewMux(q *audit.QueryService, repo *dispatch.Repository, store core.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /eventos", ListEventsHandler(q))
	mux.HandleFunc("GET /eventos/tipo/{tipo}", EventsByTypeHandler(q))
	mux.HandleFunc("GET /eventos/usuario/{usuarioId}", EventsByUserHandler(q))
	mux.HandleFunc("GET /eventos/agregado/{agregadoId}", EventsByAggregateHandler(q))
	mux.HandleFunc("GET /eventos/recientes", RecentEventsHandler(q))
	mux.HandleFunc("GET /eventos/stream", StreamEventsHandler(store))
	mux.HandleFunc("GET /reporte", ReportHandler(q))
	mux.HandleFunc("GET /estadisticas", StatsHandler(q))
	mux.HandleFunc("POST /buscar", SearchHandler(q))

	mux.HandleFunc("POST /carritos", CreateCartHandler(repo))
	mux.HandleFunc("POST /carritos/{id}/items", AddCartItemHandler(repo))
	mux.HandleFunc("DELETE /carritos/{id}/items/{productoId}", RemoveCartItemHandler(repo))
	mux.HandleFunc("POST /carritos/{id}/checkout", CheckoutCartHandler(repo))
	mux.HandleFunc("POST /productos", CreateProductHandler(repo))
	mux.HandleFunc("PUT /productos/{id}/precio", ChangeProductPriceHandler(repo))

	return mux
}
