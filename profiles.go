package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Global bounds for the age preference range.
const (
	globalMinAge = 18
	globalMaxAge = 99
)

const profileColumns = `user_id, display_name, birthdate, gender, pronouns,
	university_id, campus_id, major, graduation_year, bio,
	interests, intent, gender_preference, sexual_orientation, min_age, max_age`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var campusID sql.NullString
	var interests, genderPreference []byte

	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Birthdate, &p.Gender, &p.Pronouns,
		&p.UniversityID, &campusID, &p.Major, &p.GraduationYear, &p.Bio,
		&interests, &p.Intent, &genderPreference, &p.SexualOrientation,
		&p.MinAge, &p.MaxAge,
	)
	if err != nil {
		return nil, err
	}
	if campusID.Valid {
		p.CampusID = &campusID.String
	}
	if err := json.Unmarshal(interests, &p.Interests); err != nil {
		return nil, fmt.Errorf("interests column for user %d: %w", p.UserID, err)
	}
	if err := json.Unmarshal(genderPreference, &p.GenderPreference); err != nil {
		return nil, fmt.Errorf("gender_preference column for user %d: %w", p.UserID, err)
	}
	return &p, nil
}

// loadProfile fetches a user's profile; soft-deleted profiles read as absent.
func loadProfile(db *sql.DB, userID int) (*Profile, error) {
	row := db.QueryRow(`
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = $1 AND is_deleted = FALSE
	`, userID)
	return scanProfile(row)
}

// ProfileInput is the request body for creating or updating a profile.
// Birthdate arrives as YYYY-MM-DD.
type ProfileInput struct {
	DisplayName       string   `json:"display_name"`
	Birthdate         string   `json:"birthdate"`
	Gender            string   `json:"gender"`
	Pronouns          string   `json:"pronouns"`
	UniversityID      string   `json:"university_id"`
	CampusID          *string  `json:"campus_id"`
	Major             string   `json:"major"`
	GraduationYear    int      `json:"graduation_year"`
	Bio               string   `json:"bio"`
	Interests         []string `json:"interests"`
	Intent            string   `json:"intent"`
	GenderPreference  []string `json:"gender_preference"`
	SexualOrientation string   `json:"sexual_orientation"`
	MinAge            int      `json:"min_age"`
	MaxAge            int      `json:"max_age"`
}

func validateProfileInput(in *ProfileInput) (time.Time, string) {
	if strings.TrimSpace(in.DisplayName) == "" {
		return time.Time{}, "display_name_required"
	}
	if strings.TrimSpace(in.Gender) == "" {
		return time.Time{}, "gender_required"
	}
	if strings.TrimSpace(in.UniversityID) == "" {
		return time.Time{}, "university_required"
	}
	birthdate, err := time.Parse("2006-01-02", in.Birthdate)
	if err != nil {
		return time.Time{}, "invalid_birthdate"
	}
	p := Profile{Birthdate: birthdate}
	if p.Age() < globalMinAge {
		return time.Time{}, "underage"
	}
	if in.MinAge < globalMinAge || in.MaxAge > globalMaxAge || in.MinAge > in.MaxAge {
		return time.Time{}, "invalid_age_range"
	}
	return birthdate, ""
}

// meProfileHandler serves the authenticated user's own profile.
// GET returns it, PUT (or POST) upserts it; the owner is the only writer.
func meProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodGet:
			profile, err := loadProfile(db, userID)
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "profile_not_found")
				return
			} else if err != nil {
				writeInternalError(w, "profile_error", err)
				return
			}
			writeJSON(w, http.StatusOK, profile)

		case http.MethodPut, http.MethodPost:
			var in ProfileInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			birthdate, problem := validateProfileInput(&in)
			if problem != "" {
				writeError(w, http.StatusBadRequest, problem)
				return
			}
			if in.Interests == nil {
				in.Interests = []string{}
			}
			if in.GenderPreference == nil {
				in.GenderPreference = []string{}
			}
			interests, _ := json.Marshal(in.Interests)
			genderPreference, _ := json.Marshal(in.GenderPreference)

			_, err := db.Exec(`
				INSERT INTO profiles (user_id, display_name, birthdate, gender, pronouns,
					university_id, campus_id, major, graduation_year, bio,
					interests, intent, gender_preference, sexual_orientation, min_age, max_age)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				ON CONFLICT (user_id) DO UPDATE SET
					display_name = EXCLUDED.display_name,
					birthdate = EXCLUDED.birthdate,
					gender = EXCLUDED.gender,
					pronouns = EXCLUDED.pronouns,
					university_id = EXCLUDED.university_id,
					campus_id = EXCLUDED.campus_id,
					major = EXCLUDED.major,
					graduation_year = EXCLUDED.graduation_year,
					bio = EXCLUDED.bio,
					interests = EXCLUDED.interests,
					intent = EXCLUDED.intent,
					gender_preference = EXCLUDED.gender_preference,
					sexual_orientation = EXCLUDED.sexual_orientation,
					min_age = EXCLUDED.min_age,
					max_age = EXCLUDED.max_age,
					is_deleted = FALSE,
					updated_at = NOW()
			`, userID, in.DisplayName, birthdate, in.Gender, in.Pronouns,
				in.UniversityID, in.CampusID, in.Major, in.GraduationYear, in.Bio,
				interests, in.Intent, genderPreference, in.SexualOrientation,
				in.MinAge, in.MaxAge)
			if err != nil {
				writeInternalError(w, "profile_save_error", err)
				return
			}

			profile, err := loadProfile(db, userID)
			if err != nil {
				writeInternalError(w, "profile_error", err)
				return
			}
			writeJSON(w, http.StatusOK, profile)

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// deleteMeHandler soft-deletes the caller's profile. The row stays for
// administrative cleanup; every candidate query filters it out.
func deleteMeHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		res, err := db.Exec(`UPDATE profiles SET is_deleted = TRUE, updated_at = NOW() WHERE user_id = $1`, userID)
		if err != nil {
			writeInternalError(w, "profile_delete_error", err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// usersDispatcher routes GET /api/users/{id}/profile.
func usersDispatcher(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// Expect: /api/users/{id}/profile
		if len(parts) != 4 || parts[0] != "api" || parts[1] != "users" || parts[3] != "profile" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		profile, err := loadProfile(db, targetID)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		} else if err != nil {
			writeInternalError(w, "profile_error", err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	})
}

// userExists reports whether the user has a live (non-deleted) profile.
func userExists(db *sql.DB, userID int) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1
			FROM users u
			JOIN profiles p ON p.user_id = u.id
			WHERE u.id = $1 AND p.is_deleted = FALSE
		)
	`, userID).Scan(&exists)
	return exists, err
}
