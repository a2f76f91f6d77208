// Package identity resolves a connection's UserIdentity per the
// precedence rule: verified token subject > client-provided clientId >
// freshly synthesized UUID. This order is behavioral and must not be
// reordered.
package identity

import (
	"hash/fnv"

	"github.com/google/uuid"
)

var animals = []string{
	"Otter", "Falcon", "Panda", "Heron", "Lynx", "Mole", "Raven", "Ibex",
	"Gecko", "Marmot", "Tapir", "Quokka", "Serval", "Bison", "Wren", "Kudu",
}

var palette = []string{
	"#E57373", "#F06292", "#BA68C8", "#9575CD", "#7986CB", "#64B5F6",
	"#4FC3F7", "#4DD0E1", "#4DB6AC", "#81C784", "#AED581", "#FFD54F",
	"#FFB74D", "#FF8A65", "#A1887F", "#90A4AE",
}

// Resolve returns (userID, isAnonymous) following verified > clientID > UUID.
func Resolve(verifiedUserID, clientID string) (string, bool) {
	if verifiedUserID != "" {
		return verifiedUserID, false
	}
	if clientID != "" {
		return clientID, true
	}
	return uuid.NewString(), true
}

// DisplayName returns the client-provided name. When none was given, it
// returns userID for a non-anonymous user, and a deterministic
// "Anonymous <Animal>" derived from userID for an anonymous one.
func DisplayName(userID, provided string, isAnonymous bool) string {
	if provided != "" {
		return provided
	}
	if !isAnonymous {
		return userID
	}
	return "Anonymous " + animals[hashIndex(userID, len(animals))]
}

// AvatarColor deterministically maps userID into a fixed palette.
func AvatarColor(userID string) string {
	return palette[hashIndex(userID, len(palette))]
}

func hashIndex(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}
