package main

import (
	"database/sql"
	"net/http"
	"time"
)

// MatchWithProfile is a match seen from one user's side, hydrated with the
// peer's profile for the client's match list.
type MatchWithProfile struct {
	MatchID     string    `json:"match_id"`
	PeerID      int       `json:"peer_id"`
	MatchedAt   time.Time `json:"matched_at"`
	PeerProfile *Profile  `json:"peer_profile,omitempty"`
}

// GET /api/matches
func matchesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		me := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT id, user_min, user_max, created_at
			FROM matches
			WHERE user_min = $1 OR user_max = $1
			ORDER BY created_at DESC, id
		`, me)
		if err != nil {
			writeInternalError(w, "matches_error", err)
			return
		}
		defer rows.Close()

		matches := []MatchWithProfile{}
		for rows.Next() {
			var m Match
			if err := rows.Scan(&m.ID, &m.UserMin, &m.UserMax, &m.CreatedAt); err != nil {
				writeInternalError(w, "matches_error", err)
				return
			}
			matches = append(matches, MatchWithProfile{
				MatchID:   m.ID,
				PeerID:    m.PeerID(me),
				MatchedAt: m.CreatedAt,
			})
		}
		if err := rows.Err(); err != nil {
			writeInternalError(w, "matches_error", err)
			return
		}

		// Hydrate peer profiles through the batch loader so the whole list
		// costs one profile query instead of one per match.
		if loaders := GetDataLoadersFromContext(r.Context()); loaders != nil && len(matches) > 0 {
			thunks := make([]func() (*Profile, error), len(matches))
			for i, m := range matches {
				thunks[i] = loaders.ProfileLoader.Load(r.Context(), m.PeerID)
			}
			for i, thunk := range thunks {
				if profile, err := thunk(); err == nil {
					matches[i].PeerProfile = profile
				}
			}
		}

		writeJSON(w, http.StatusOK, map[string][]MatchWithProfile{"matches": matches})
	})
}
