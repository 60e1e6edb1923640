/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"math/rand/v2"
	"strings"
)

// pickWords chooses a pair uniformly, then flips a coin for which member
// the civilians get.
func (c *Controller) pickWords() (WordPair, error) {
	if c.catalog == nil {
		return WordPair{}, ErrEmptyCatalog
	}

	pairs := c.catalog.Pairs()
	if len(pairs) == 0 {
		return WordPair{}, ErrEmptyCatalog
	}

	pair := pairs[c.rng.IntN(len(pairs))]
	if strings.TrimSpace(pair[0]) == "" || strings.TrimSpace(pair[1]) == "" {
		return WordPair{}, ErrEmptyCatalog
	}

	if c.rng.IntN(2) == 0 {
		return WordPair{Civilian: pair[0], Undercover: pair[1]}, nil
	}

	return WordPair{Civilian: pair[1], Undercover: pair[0]}, nil
}

// buildRoles lays out undercover roles first, then blanks, then civilians.
func buildRoles(n, undercover, blank int) []Role {
	roles := make([]Role, n)

	for i := range roles {
		switch {
		case i < undercover:
			roles[i] = RoleUndercover
		case i < undercover+blank:
			roles[i] = RoleBlank
		default:
			roles[i] = RoleCivilian
		}
	}

	return roles
}

// shuffle is a Fisher-Yates shuffle.
func shuffle(rng *rand.Rand, roles []Role) {
	for i := len(roles) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}
}
