package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeInternalError hides the raw store error behind a machine code unless
// EXPOSE_DB_ERRORS is set. The error is always logged server-side.
func writeInternalError(w http.ResponseWriter, code string, err error) {
	log.Printf("%s: %v", code, err)
	if cfg.ExposeDBErrors && err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, code)
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps handler bodies tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockPair serializes all transactions touching the unordered user pair
// {a, b} with a transaction-scoped advisory lock on the canonical ordering.
// Two directed like rows exist per pair, so a plain SELECT ... FOR UPDATE
// cannot cover both directions (and cannot lock rows that don't exist yet);
// the advisory lock guarantees the second of two reciprocal-like requests
// always sees the first one's committed row.
func lockPair(tx *sql.Tx, a, b int) error {
	userMin, userMax := orderPair(a, b)
	_, err := tx.Exec(`SELECT pg_advisory_xact_lock($1, $2)`, userMin, userMax)
	return err
}
