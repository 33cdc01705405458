package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ============================================================================
// LIKE / MATCH COORDINATOR TEST SUITE
// ============================================================================

func TestLikeMatchSuite(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		testLikeValidation(t)
	})

	t.Run("MatchFormation", func(t *testing.T) {
		testMatchFormation(t)
	})

	t.Run("ConcurrentMatchCreation", func(t *testing.T) {
		testConcurrentMatchCreation(t)
	})
}

func testLikeValidation(t *testing.T) {
	userA := createTestUser(t, "like_val_a@example.com", "passwordA")
	userB := createTestUser(t, "like_val_b@example.com", "passwordB")
	defer cleanupTestData(userA.Email, userB.Email)

	createTestProfile(t, userA, getDefaultTestProfile())
	createTestProfile(t, userB, getDefaultTestProfile())

	t.Run("Missing to_user", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"from_user":%d}`, userA.ID))
		req := httptest.NewRequest(http.MethodPost, "/api/likes", bytes.NewBuffer(body))
		req.Header.Set("Authorization", "Bearer "+userA.Token)
		w := httptest.NewRecorder()

		createLikeHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var resp map[string]string
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["error"] != "Both from_user and to_user are required" {
			t.Errorf("unexpected error message: %q", resp["error"])
		}
	})

	t.Run("Self-like rejected", func(t *testing.T) {
		code, _ := likeUser(t, userA, userA.ID, false)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 for self-like, got %d", code)
		}

		var likeCount, matchCount int
		db.QueryRow("SELECT COUNT(*) FROM likes WHERE from_user = $1 AND to_user = $1", userA.ID).Scan(&likeCount)
		db.QueryRow("SELECT COUNT(*) FROM matches WHERE user_min = $1 AND user_max = $1", userA.ID).Scan(&matchCount)
		if likeCount != 0 || matchCount != 0 {
			t.Errorf("self-like must not create rows: likes=%d matches=%d", likeCount, matchCount)
		}
	})

	t.Run("From_user must be the caller", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"from_user":%d,"to_user":%d}`, userB.ID, userA.ID))
		req := httptest.NewRequest(http.MethodPost, "/api/likes", bytes.NewBuffer(body))
		req.Header.Set("Authorization", "Bearer "+userA.Token)
		w := httptest.NewRecorder()

		createLikeHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("Unknown target", func(t *testing.T) {
		code, _ := likeUser(t, userA, 99999999, false)
		if code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown target, got %d", code)
		}
	})

	t.Run("Blocked pair", func(t *testing.T) {
		db.Exec("INSERT INTO blocks (user_id, blocked_user_id) VALUES ($1, $2)", userB.ID, userA.ID)
		defer db.Exec("DELETE FROM blocks WHERE user_id = $1 AND blocked_user_id = $2", userB.ID, userA.ID)

		code, _ := likeUser(t, userA, userB.ID, false)
		if code != http.StatusForbidden {
			t.Fatalf("expected 403 for blocked pair, got %d", code)
		}
	})
}

func testMatchFormation(t *testing.T) {
	userA := createTestUser(t, "match_a@example.com", "passwordA")
	userB := createTestUser(t, "match_b@example.com", "passwordB")
	defer cleanupTestData(userA.Email, userB.Email)

	createTestProfile(t, userA, getDefaultTestProfile())
	createTestProfile(t, userB, getDefaultTestProfile())

	t.Run("First like does not match", func(t *testing.T) {
		code, resp := likeUser(t, userA, userB.ID, false)
		if code != http.StatusCreated {
			t.Fatalf("expected 201 for new like, got %d", code)
		}
		if resp["matched"] != false {
			t.Errorf("one-directional like must not match: %v", resp)
		}
		if _, ok := resp["match_id"]; ok {
			t.Errorf("no match_id expected before reciprocal like: %v", resp)
		}
	})

	t.Run("Re-like updates in place", func(t *testing.T) {
		code, resp := likeUser(t, userA, userB.ID, true)
		if code != http.StatusOK {
			t.Fatalf("expected 200 for re-like, got %d", code)
		}
		like := resp["like"].(map[string]interface{})
		if like["is_superlike"] != true {
			t.Errorf("re-like should upgrade to superlike: %v", like)
		}

		var count int
		db.QueryRow("SELECT COUNT(*) FROM likes WHERE from_user = $1 AND to_user = $2", userA.ID, userB.ID).Scan(&count)
		if count != 1 {
			t.Errorf("expected exactly one like row, got %d", count)
		}
	})

	var firstMatchID string

	t.Run("Reciprocal like matches", func(t *testing.T) {
		code, resp := likeUser(t, userB, userA.ID, false)
		if code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", code)
		}
		if resp["matched"] != true {
			t.Fatalf("reciprocal like must match: %v", resp)
		}
		id, ok := resp["match_id"].(string)
		if !ok || id == "" {
			t.Fatalf("expected non-empty match_id, got %v", resp)
		}
		firstMatchID = id
	})

	t.Run("Repeat like observes same match", func(t *testing.T) {
		code, resp := likeUser(t, userB, userA.ID, false)
		if code != http.StatusOK {
			t.Fatalf("expected 200 for repeat like, got %d", code)
		}
		if resp["matched"] != true {
			t.Fatalf("repeat like must still report matched: %v", resp)
		}
		if resp["match_id"] != firstMatchID {
			t.Errorf("repeat like must observe the same match id: got %v want %s", resp["match_id"], firstMatchID)
		}

		userMin, userMax := orderPair(userA.ID, userB.ID)
		var count int
		db.QueryRow("SELECT COUNT(*) FROM matches WHERE user_min = $1 AND user_max = $2", userMin, userMax).Scan(&count)
		if count != 1 {
			t.Errorf("expected exactly one match row, got %d", count)
		}
	})

	t.Run("Matched pair leaves both feeds", func(t *testing.T) {
		for _, u := range []TestUser{userA, userB} {
			feed := getFeed(t, u, 50, 0)
			for _, p := range feed {
				if p.UserID == userA.ID || p.UserID == userB.ID {
					t.Errorf("matched user %d still in feed of %d", p.UserID, u.ID)
				}
			}
		}
	})
}

// testConcurrentMatchCreation fires the two possible "second like" requests
// from many workers at once; exactly one match row may exist afterwards and
// every worker that observed a match must have seen the same id.
func testConcurrentMatchCreation(t *testing.T) {
	userA := createTestUser(t, "race_a@example.com", "passwordA")
	userB := createTestUser(t, "race_b@example.com", "passwordB")
	defer cleanupTestData(userA.Email, userB.Email)

	createTestProfile(t, userA, getDefaultTestProfile())
	createTestProfile(t, userB, getDefaultTestProfile())

	const workers = 16

	var wg sync.WaitGroup
	matchIDs := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		from, to := userA.ID, userB.ID
		if i%2 == 1 {
			from, to = to, from
		}
		go func(from, to int) {
			defer wg.Done()
			res, err := createLike(context.Background(), db, from, to, false)
			if err != nil {
				errs <- err
				return
			}
			if res.Matched() {
				matchIDs <- res.MatchID
			}
		}(from, to)
	}
	wg.Wait()
	close(matchIDs)
	close(errs)

	for err := range errs {
		t.Errorf("createLike must never fail due to the race: %v", err)
	}

	userMin, userMax := orderPair(userA.ID, userB.ID)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM matches WHERE user_min = $1 AND user_max = $2", userMin, userMax).Scan(&count)
	if count != 1 {
		t.Fatalf("expected exactly one match row, got %d", count)
	}

	var canonical string
	db.QueryRow("SELECT id FROM matches WHERE user_min = $1 AND user_max = $2", userMin, userMax).Scan(&canonical)

	observed := 0
	for id := range matchIDs {
		observed++
		if id != canonical {
			t.Errorf("worker observed match id %s, canonical is %s", id, canonical)
		}
	}
	if observed == 0 {
		t.Error("expected at least one worker to observe the match")
	}
}
