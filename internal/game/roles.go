// internal/game/roles.go
package game

import "math/rand"

// RoleAssignment is the secret partition of players produced at game start.
// Empty strings mean the role is not in play.
type RoleAssignment struct {
	Impastas      []string
	HiddenImpasta string
	HeadChef      string
}

// AssignRoles shuffles the players and deals roles from the front of the
// shuffled order. When the rules call for a hidden Impasta it is always the
// last dealt Impasta.
func AssignRoles(rng *rand.Rand, playerIDs []string, rules RuleConfig) RoleAssignment {
	order := shuffled(rng, playerIDs)

	n := rules.ImpastaCount
	if n > len(order) {
		n = len(order)
	}

	var ra RoleAssignment
	ra.Impastas = append([]string(nil), order[:n]...)
	if rules.HiddenCount() > 0 && n > 0 {
		ra.HiddenImpasta = ra.Impastas[n-1]
	}
	if rules.HasHeadChef && len(order) > n {
		chefs := order[n:]
		ra.HeadChef = chefs[rng.Intn(len(chefs))]
	}
	return ra
}

// shuffled returns a uniformly permuted copy of ids.
func shuffled(rng *rand.Rand, ids []string) []string {
	out := append([]string(nil), ids...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
