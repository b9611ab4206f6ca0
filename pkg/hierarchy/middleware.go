package hierarchy

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostguard/core/internal/db"
)

// HeaderResolver resolves the tenant from the X-Tenant-Slug header. Intended
// for development and for deployments that terminate tenant routing at a
// gateway; production call sites should resolve the tenant from the verified
// identity instead.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (string, error) {
	slug := r.Header.Get("X-Tenant-Slug")
	if slug == "" {
		return "", fmt.Errorf("missing X-Tenant-Slug header")
	}
	return slug, nil
}

// Middleware resolves the tenant for the request and stores it in context.
// Unlike the schema-per-tenant version this never touches search_path; every
// downstream query carries tenant_id explicitly.
func Middleware(pool *pgxpool.Pool, resolve func(*http.Request) (string, error), logger *slog.Logger) func(http.Handler) http.Handler {
	lookup := &Lookup{Queries: db.New(pool)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug, err := resolve(r)
			if err != nil {
				respondErr(w, http.StatusBadRequest, "invalid_input", err.Error())
				return
			}

			info, err := lookup.ResolveSlug(r.Context(), slug)
			if err != nil {
				logger.Warn("tenant resolution failed", "slug", slug, "error", err)
				respondErr(w, http.StatusNotFound, "not_found", "unknown tenant")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), info)))
		})
	}
}

func respondErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
