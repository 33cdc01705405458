package main

import "time"

// Profile represents a user's dating profile with preferences for discovery
type Profile struct {
	UserID            int       `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	Birthdate         time.Time `json:"birthdate"`
	Gender            string    `json:"gender"`
	Pronouns          string    `json:"pronouns,omitempty"`
	UniversityID      string    `json:"university_id"`
	CampusID          *string   `json:"campus_id,omitempty"`
	Major             string    `json:"major,omitempty"`
	GraduationYear    int       `json:"graduation_year,omitempty"`
	Bio               string    `json:"bio,omitempty"`
	Interests         []string  `json:"interests"`
	Intent            string    `json:"intent"`
	GenderPreference  []string  `json:"gender_preference"`
	SexualOrientation string    `json:"sexual_orientation,omitempty"`
	MinAge            int       `json:"min_age"`
	MaxAge            int       `json:"max_age"`
}

// Age derives the user's age in full years from the stored birthdate.
func (p *Profile) Age() int {
	now := time.Now()
	age := now.Year() - p.Birthdate.Year()
	if now.YearDay() < p.Birthdate.YearDay() {
		age--
	}
	return age
}

// Like is a directed expression of interest from one user to another.
// At most one row exists per ordered (from_user, to_user) pair; re-liking
// updates the existing row instead of duplicating it.
type Like struct {
	ID          int       `json:"id"`
	FromUser    int       `json:"from_user"`
	ToUser      int       `json:"to_user"`
	IsSuperlike bool      `json:"is_superlike"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match is the undirected, deduplicated record created when both directions
// of a Like exist. UserMin < UserMax always holds; the unique constraint on
// (user_min, user_max) is what makes match creation race-safe.
type Match struct {
	ID        string    `json:"match_id"`
	UserMin   int       `json:"user_min"`
	UserMax   int       `json:"user_max"`
	CreatedAt time.Time `json:"created_at"`
}

// PeerID returns the other side of the match from userID's point of view.
func (m *Match) PeerID(userID int) int {
	if m.UserMin == userID {
		return m.UserMax
	}
	return m.UserMin
}

// ProfileWithScore is a discovery-feed entry: a candidate profile plus the
// compatibility score computed for the current viewer. Never persisted.
type ProfileWithScore struct {
	Profile
	CompatibilityScore float64 `json:"compatibility_score"`
}

// CompatibilityWeights scales the three scorer terms. Comes from config,
// never hard-coded per candidate.
type CompatibilityWeights struct {
	SharedInterests          float64
	IntentCompatibility      float64
	OrientationCompatibility float64
}

// IntentCompatibilityMatrix maps (viewer intent, candidate intent) to a
// compatibility value in [0,1]. Authored symmetric; missing entries read as 0.
type IntentCompatibilityMatrix map[string]map[string]float64

// orderPair maps an unordered user pair onto the canonical (user_min,
// user_max) ordering used by the matches unique constraint.
func orderPair(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
