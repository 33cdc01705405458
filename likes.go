package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// matchOutcome tags how the coordinator arrived at a match id, so the
// idempotence guarantee is visible in the result instead of being folded
// into a boolean.
type matchOutcome int

const (
	noMatch matchOutcome = iota
	matchInserted
	matchAlreadyExisted
)

// likeResult is what createLike reports back to the handler.
type likeResult struct {
	Like        Like
	LikeCreated bool
	Outcome     matchOutcome
	MatchID     string
	MatchedAt   time.Time
}

func (r *likeResult) Matched() bool { return r.Outcome != noMatch }

// createLike records the directed like and decides, atomically, whether a
// match now exists.
//
// All coordination is pushed to the store: the advisory lock on the
// canonical pair serializes the two possible "second like" requests, and
// the unique constraint on (user_min, user_max) guarantees at most one
// match row even against retries that bypass the lock. Whichever request
// wins inserts the row; the loser observes it and reports the same id.
func createLike(ctx context.Context, db *sql.DB, fromUser, toUser int, isSuperlike bool) (*likeResult, error) {
	var res likeResult

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if err := lockPair(tx, fromUser, toUser); err != nil {
			return err
		}

		// Upsert the directed like. Re-liking updates in place (superlike
		// upgrades included), never duplicates.
		var existingID int
		err := tx.QueryRow(`
			SELECT id FROM likes WHERE from_user = $1 AND to_user = $2
		`, fromUser, toUser).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			err = tx.QueryRow(`
				INSERT INTO likes (from_user, to_user, is_superlike)
				VALUES ($1, $2, $3)
				RETURNING id, from_user, to_user, is_superlike, created_at, updated_at
			`, fromUser, toUser, isSuperlike).Scan(
				&res.Like.ID, &res.Like.FromUser, &res.Like.ToUser,
				&res.Like.IsSuperlike, &res.Like.CreatedAt, &res.Like.UpdatedAt)
			if err != nil {
				return err
			}
			res.LikeCreated = true
		case err != nil:
			return err
		default:
			err = tx.QueryRow(`
				UPDATE likes SET is_superlike = $2, updated_at = NOW()
				WHERE id = $1
				RETURNING id, from_user, to_user, is_superlike, created_at, updated_at
			`, existingID, isSuperlike).Scan(
				&res.Like.ID, &res.Like.FromUser, &res.Like.ToUser,
				&res.Like.IsSuperlike, &res.Like.CreatedAt, &res.Like.UpdatedAt)
			if err != nil {
				return err
			}
		}

		// Reciprocal check: does the opposite direction already exist?
		var reciprocal bool
		if err := tx.QueryRow(`
			SELECT EXISTS (SELECT 1 FROM likes WHERE from_user = $1 AND to_user = $2)
		`, toUser, fromUser).Scan(&reciprocal); err != nil {
			return err
		}
		if !reciprocal {
			res.Outcome = noMatch
			return nil
		}

		// Both directions exist: create the canonical match row, or observe
		// the one a concurrent request (or an earlier retry) already created.
		// ON CONFLICT DO NOTHING turns the uniqueness violation into an
		// empty result instead of an error, so the race is absorbed here
		// and never surfaces to the caller.
		userMin, userMax := orderPair(fromUser, toUser)
		err = tx.QueryRow(`
			INSERT INTO matches (id, user_min, user_max)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_min, user_max) DO NOTHING
			RETURNING id, created_at
		`, uuid.NewString(), userMin, userMax).Scan(&res.MatchID, &res.MatchedAt)
		switch {
		case err == sql.ErrNoRows:
			// Lost the race: read the winner's row. Same id for both callers.
			if err := tx.QueryRow(`
				SELECT id, created_at FROM matches WHERE user_min = $1 AND user_max = $2
			`, userMin, userMax).Scan(&res.MatchID, &res.MatchedAt); err != nil {
				return err
			}
			res.Outcome = matchAlreadyExisted
		case err != nil:
			return err
		default:
			res.Outcome = matchInserted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// POST /api/likes
// Body: {from_user, to_user, is_superlike}; from_user must be the caller.
func createLikeHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		me := r.Context().Value(userIDKey).(int)

		type LikeRequest struct {
			FromUser    int  `json:"from_user"`
			ToUser      int  `json:"to_user"`
			IsSuperlike bool `json:"is_superlike"`
		}
		var req LikeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		if req.FromUser == 0 || req.ToUser == 0 {
			writeError(w, http.StatusBadRequest, "Both from_user and to_user are required")
			return
		}
		if req.FromUser != me {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if req.FromUser == req.ToUser {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		exists, err := userExists(db, req.ToUser)
		if err != nil {
			writeInternalError(w, "like_error", err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		blocked, err := isBlockedPair(db, req.FromUser, req.ToUser)
		if err != nil {
			writeInternalError(w, "like_error", err)
			return
		}
		if blocked {
			writeError(w, http.StatusForbidden, "blocked")
			return
		}

		res, err := createLike(r.Context(), db, req.FromUser, req.ToUser, req.IsSuperlike)
		if err != nil {
			writeInternalError(w, "like_error", err)
			return
		}

		// A freshly created match is notification-worthy; an observed
		// pre-existing one was already announced by the winning request.
		if res.Outcome == matchInserted {
			notifyHub.matchCreated(res.MatchID, req.FromUser, req.ToUser, res.MatchedAt)
		}

		type LikeResponse struct {
			Like    Like   `json:"like"`
			Matched bool   `json:"matched"`
			MatchID string `json:"match_id,omitempty"`
		}
		status := http.StatusOK
		if res.LikeCreated {
			status = http.StatusCreated
		}
		writeJSON(w, status, LikeResponse{
			Like:    res.Like,
			Matched: res.Matched(),
			MatchID: res.MatchID,
		})
	})
}

// GET /api/likes/received
// Lists users who liked the caller and haven't been liked back yet —
// once the caller reciprocates, the pair graduates to /api/matches.
func likesReceivedHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		me := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT l.from_user, l.is_superlike, l.created_at
			FROM likes l
			WHERE l.to_user = $1
			  AND NOT EXISTS (
			      SELECT 1 FROM likes r WHERE r.from_user = $1 AND r.to_user = l.from_user
			  )
			  AND NOT EXISTS (
			      SELECT 1 FROM blocks b
			      WHERE (b.user_id = $1 AND b.blocked_user_id = l.from_user)
			         OR (b.user_id = l.from_user AND b.blocked_user_id = $1)
			  )
			ORDER BY l.is_superlike DESC, l.created_at DESC, l.id DESC
		`, me)
		if err != nil {
			writeInternalError(w, "likes_error", err)
			return
		}
		defer rows.Close()

		type ReceivedLike struct {
			FromUser    int       `json:"from_user"`
			IsSuperlike bool      `json:"is_superlike"`
			CreatedAt   time.Time `json:"created_at"`
		}
		likes := []ReceivedLike{}
		for rows.Next() {
			var rl ReceivedLike
			if err := rows.Scan(&rl.FromUser, &rl.IsSuperlike, &rl.CreatedAt); err != nil {
				writeInternalError(w, "likes_error", err)
				return
			}
			likes = append(likes, rl)
		}
		if err := rows.Err(); err != nil {
			writeInternalError(w, "likes_error", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string][]ReceivedLike{"likes": likes})
	})
}
