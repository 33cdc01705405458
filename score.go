package main

import "strings"

// The compatibility scorer is a pure function over two profiles and a weight
// table. It never fails and never touches the database; the feed builder
// calls it once per candidate.

// defaultIntentMatrix is authored symmetric: matrix[a][b] == matrix[b][a]
// for every pair. Unknown intents simply read as 0.
var defaultIntentMatrix = IntentCompatibilityMatrix{
	"relationship": {"relationship": 1.0, "casual": 0.3, "friends": 0.1, "unsure": 0.5},
	"casual":       {"relationship": 0.3, "casual": 1.0, "friends": 0.4, "unsure": 0.6},
	"friends":      {"relationship": 0.1, "casual": 0.4, "friends": 1.0, "unsure": 0.5},
	"unsure":       {"relationship": 0.5, "casual": 0.6, "friends": 0.5, "unsure": 0.7},
}

// sharedInterestsTerm returns the Jaccard overlap of the two interest sets:
// |intersection| / max(1, |union|). The max(1, ...) guard makes two empty
// sets score 0 instead of dividing by zero. Matching is case-insensitive.
func sharedInterestsTerm(viewerInterests, candidateInterests []string) float64 {
	viewerSet := make(map[string]bool, len(viewerInterests))
	for _, interest := range viewerInterests {
		viewerSet[strings.ToLower(interest)] = true
	}
	candidateSet := make(map[string]bool, len(candidateInterests))
	for _, interest := range candidateInterests {
		candidateSet[strings.ToLower(interest)] = true
	}

	intersection := 0
	union := len(viewerSet)
	for k := range candidateSet {
		if viewerSet[k] {
			intersection++
		} else {
			union++
		}
	}

	if union < 1 {
		union = 1
	}
	return float64(intersection) / float64(union)
}

// intentTerm looks up the pair of intents in the matrix; a missing row or
// entry reads as 0.
func intentTerm(matrix IntentCompatibilityMatrix, viewerIntent, candidateIntent string) float64 {
	row, ok := matrix[strings.ToLower(viewerIntent)]
	if !ok {
		return 0
	}
	return row[strings.ToLower(candidateIntent)]
}

// genderInPreference reports whether gender appears in the preference set.
// An empty set returns false: for scoring purposes a missing preference
// fails closed.
func genderInPreference(gender string, preference []string) bool {
	for _, p := range preference {
		if strings.EqualFold(p, gender) {
			return true
		}
	}
	return false
}

// orientationTerm is 1 when each side's gender falls within the other's
// stated preference, 0 otherwise.
func orientationTerm(viewer, candidate *Profile) float64 {
	if genderInPreference(candidate.Gender, viewer.GenderPreference) &&
		genderInPreference(viewer.Gender, candidate.GenderPreference) {
		return 1
	}
	return 0
}

// compatibilityScore is the total score for showing candidate to viewer:
// the three terms scaled by their weights and summed. No cross-candidate
// normalization; only the relative order matters to the feed.
func compatibilityScore(viewer, candidate *Profile, w CompatibilityWeights) float64 {
	score := sharedInterestsTerm(viewer.Interests, candidate.Interests) * w.SharedInterests
	score += intentTerm(defaultIntentMatrix, viewer.Intent, candidate.Intent) * w.IntentCompatibility
	score += orientationTerm(viewer, candidate) * w.OrientationCompatibility
	return score
}
