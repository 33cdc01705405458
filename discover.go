package main

import (
	"database/sql"
	"net/http"
	"sort"
	"strconv"

	"github.com/lib/pq"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// parseFeedWindow reads limit/offset query params. Policy: clamp, don't
// reject — negative or garbage values fall back to defaults, oversized
// limits are capped.
func parseFeedWindow(r *http.Request) (limit, offset int) {
	limit = defaultFeedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// GET /api/discover?limit&offset
func discoverHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		viewer, err := loadProfile(db, userID)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		} else if err != nil {
			writeInternalError(w, "profile_error", err)
			return
		}

		limit, offset := parseFeedWindow(r)
		feed, err := buildDiscoverFeed(db, viewer, limit, offset)
		if err != nil {
			writeInternalError(w, "discover_error", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string][]ProfileWithScore{"profiles": feed})
	})
}

// buildDiscoverFeed produces the ranked candidate window for the viewer.
// Filtering happens in SQL before scoring, and scoring before pagination:
// slicing a shrinking set after the fact would break offset arithmetic.
func buildDiscoverFeed(db *sql.DB, viewer *Profile, limit, offset int) ([]ProfileWithScore, error) {
	candidates, err := fetchCandidatePool(db, viewer)
	if err != nil {
		return nil, err
	}

	feed := make([]ProfileWithScore, 0, len(candidates))
	for _, c := range candidates {
		feed = append(feed, ProfileWithScore{
			Profile:            *c,
			CompatibilityScore: compatibilityScore(viewer, c, cfg.Weights),
		})
	}

	// Descending by score; ascending user_id breaks ties so repeated calls
	// paginate over a stable total order.
	sort.Slice(feed, func(i, j int) bool {
		if feed[i].CompatibilityScore != feed[j].CompatibilityScore {
			return feed[i].CompatibilityScore > feed[j].CompatibilityScore
		}
		return feed[i].UserID < feed[j].UserID
	})

	if offset >= len(feed) {
		return []ProfileWithScore{}, nil
	}
	end := offset + limit
	if end > len(feed) {
		end = len(feed)
	}
	return feed[offset:end], nil
}

// fetchCandidatePool returns every profile still eligible to appear in the
// viewer's feed. Excluded at SQL level: the viewer, anyone sharing a like
// edge with the viewer in either direction (a liked candidate must never
// resurface), existing matches, block relations in either direction,
// candidates outside the viewer's age range, and other universities.
// An empty gender preference intentionally means "no gender restriction".
func fetchCandidatePool(db *sql.DB, viewer *Profile) ([]*Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles p
		WHERE p.is_deleted = FALSE
		  AND p.user_id <> $1
		  AND p.university_id = $2
		  AND date_part('year', age(p.birthdate)) BETWEEN $3 AND $4
		  AND NOT EXISTS (
		      SELECT 1 FROM likes l
		      WHERE (l.from_user = $1 AND l.to_user = p.user_id)
		         OR (l.from_user = p.user_id AND l.to_user = $1)
		  )
		  AND NOT EXISTS (
		      SELECT 1 FROM matches m
		      WHERE m.user_min = LEAST($1, p.user_id)
		        AND m.user_max = GREATEST($1, p.user_id)
		  )
		  AND NOT EXISTS (
		      SELECT 1 FROM blocks b
		      WHERE (b.user_id = $1 AND b.blocked_user_id = p.user_id)
		         OR (b.user_id = p.user_id AND b.blocked_user_id = $1)
		  )
	`
	args := []interface{}{viewer.UserID, viewer.UniversityID, viewer.MinAge, viewer.MaxAge}
	if len(viewer.GenderPreference) > 0 {
		query += ` AND p.gender = ANY($5)`
		args = append(args, pq.Array(viewer.GenderPreference))
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, p)
	}
	return candidates, rows.Err()
}
