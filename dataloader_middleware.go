package main

import (
	"database/sql"
	"net/http"
)

// DataLoaderMiddleware creates middleware that injects dataloaders into the request context
func DataLoaderMiddleware(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// New loaders per request so nothing is cached across users
			dataloaders := NewDataLoaders(db)

			ctx := WithDataLoaders(r.Context(), dataloaders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
