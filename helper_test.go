package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Initialize JWT secret for helper tests
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

// createTestUser creates a user with the given email and password, returns TestUser with ID and Token
func createTestUser(t *testing.T, email, password string) TestUser {
	t.Helper()

	// Clean up existing user
	cleanupTestData(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}

	var userID int
	err = db.QueryRow("INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id", email, string(hash)).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	token := loginUser(t, email, password)

	return TestUser{
		ID:       userID,
		Email:    email,
		Password: password,
		Token:    token,
	}
}

// loginUser logs in a user and returns the JWT token
func loginUser(t *testing.T, email, password string) string {
	t.Helper()

	reqBody := []byte(fmt.Sprintf(`{"email":"%s","password":"%s"}`, email, password))
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	loginHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed for %s: status %d", email, w.Code)
	}

	var respBody map[string]interface{}
	json.NewDecoder(w.Body).Decode(&respBody)
	token, ok := respBody["token"].(string)
	if !ok {
		t.Fatalf("expected token in login response, got %v", respBody)
	}

	return token
}

// createTestProfile creates a profile for a user through the handler
func createTestProfile(t *testing.T, user TestUser, profile ProfileInput) {
	t.Helper()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("failed to marshal profile: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/me/profile", bytes.NewBuffer(profileJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	meProfileHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("failed to create profile for user %d: status %d body %s", user.ID, w.Code, w.Body.String())
	}
}

// getDefaultTestProfile returns a profile that passes validation and lands
// in the same university pool as every other default test profile
func getDefaultTestProfile() ProfileInput {
	return ProfileInput{
		DisplayName:       "Test User",
		Birthdate:         "2000-05-15",
		Gender:            "woman",
		Pronouns:          "she/her",
		UniversityID:      "uni-aurora",
		Major:             "Computer Science",
		GraduationYear:    2026,
		Bio:               "I love testing!",
		Interests:         []string{"music", "hiking"},
		Intent:            "relationship",
		GenderPreference:  []string{"man", "woman"},
		SexualOrientation: "bisexual",
		MinAge:            18,
		MaxAge:            99,
	}
}

// likeUser fires POST /api/likes from one user to another and returns the decoded response
func likeUser(t *testing.T, from TestUser, toID int, superlike bool) (int, map[string]interface{}) {
	t.Helper()

	body := []byte(fmt.Sprintf(`{"from_user":%d,"to_user":%d,"is_superlike":%t}`, from.ID, toID, superlike))
	req := httptest.NewRequest(http.MethodPost, "/api/likes", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+from.Token)
	w := httptest.NewRecorder()

	createLikeHandler(db).ServeHTTP(w, req)

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	return w.Code, resp
}

// getFeed fetches /api/discover for the user with the given window
func getFeed(t *testing.T, user TestUser, limit, offset int) []ProfileWithScore {
	t.Helper()

	url := fmt.Sprintf("/api/discover?limit=%d&offset=%d", limit, offset)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	discoverHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("discover failed for user %d: status %d body %s", user.ID, w.Code, w.Body.String())
	}

	var resp struct {
		Profiles []ProfileWithScore `json:"profiles"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	return resp.Profiles
}

// cleanupTestData removes test data for given emails
func cleanupTestData(emails ...string) {
	for _, email := range emails {
		db.Exec("DELETE FROM likes WHERE from_user IN (SELECT id FROM users WHERE email = $1) OR to_user IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM matches WHERE user_min IN (SELECT id FROM users WHERE email = $1) OR user_max IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM blocks WHERE user_id IN (SELECT id FROM users WHERE email = $1) OR blocked_user_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM profiles WHERE user_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}
