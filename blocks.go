package main

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
)

// The block relation feeds the exclusion set consumed by both the discovery
// feed and the like coordinator. Blocking is directional in storage but
// symmetric in effect: either direction removes the pair from each other's
// world.

func isBlockedPair(db *sql.DB, a, b int) (bool, error) {
	var blocked bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (user_id = $1 AND blocked_user_id = $2)
			   OR (user_id = $2 AND blocked_user_id = $1)
		)
	`, a, b).Scan(&blocked)
	return blocked, err
}

// GET /api/blocks — list the caller's own blocks.
func blocksHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		me := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT blocked_user_id FROM blocks WHERE user_id = $1 ORDER BY created_at DESC
		`, me)
		if err != nil {
			writeInternalError(w, "blocks_error", err)
			return
		}
		defer rows.Close()

		blocks := []int{}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				writeInternalError(w, "blocks_error", err)
				return
			}
			blocks = append(blocks, id)
		}
		if err := rows.Err(); err != nil {
			writeInternalError(w, "blocks_error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]int{"blocks": blocks})
	})
}

// blocksActionsRouter handles POST/DELETE /api/blocks/{id}.
func blocksActionsRouter(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// Expect: /api/blocks/{id}
		if len(parts) != 3 || parts[0] != "api" || parts[1] != "blocks" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		me := r.Context().Value(userIDKey).(int)
		if targetID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		switch r.Method {
		case http.MethodPost:
			exists, err := userExists(db, targetID)
			if err != nil {
				writeInternalError(w, "blocks_error", err)
				return
			}
			if !exists {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			// Re-blocking is idempotent
			if _, err := db.Exec(`
				INSERT INTO blocks (user_id, blocked_user_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, me, targetID); err != nil {
				writeInternalError(w, "blocks_error", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]bool{"blocked": true})

		case http.MethodDelete:
			if _, err := db.Exec(`
				DELETE FROM blocks WHERE user_id = $1 AND blocked_user_id = $2
			`, me, targetID); err != nil {
				writeInternalError(w, "blocks_error", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}
