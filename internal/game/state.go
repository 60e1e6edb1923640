/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"strings"
)

const (
	MinPlayers = 3

	MinUndercover = 1
	MaxUndercover = 3

	MinBlank = 0
	MaxBlank = 2

	// BlankWord is shown to blank players in place of a secret word.
	BlankWord = "(blank)"
)

// Role is the secret identity handed to a player at game start.
type Role string

const (
	RoleCivilian   Role = "civilian"
	RoleUndercover Role = "undercover"
	RoleBlank      Role = "blank"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) valid() bool {
	switch r {
	case RoleCivilian, RoleUndercover, RoleBlank:
		return true
	default:
		return false
	}
}

// Phase selects which view the presentation layer renders.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseReveal  Phase = "reveal"
	PhaseDiscuss Phase = "discuss"
)

func (p Phase) String() string {
	return string(p)
}

// Player is a roster entry. Role stays empty until the game starts.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}

// WordPair holds the two secret words of a game, already oriented.
type WordPair struct {
	Civilian   string `json:"civilian"`
	Undercover string `json:"undercover"`
}

// State is the full, serializable game state.
type State struct {
	Players         []Player  `json:"players"`
	UndercoverCount int       `json:"undercoverCount"`
	BlankCount      int       `json:"blankCount"`
	Words           *WordPair `json:"words"`
	Phase           Phase     `json:"phase"`
	RevealIndex     int       `json:"revealIndex"`
}

// DefaultState returns the state of a freshly opened or reset game.
func DefaultState() State {
	return State{
		Players:         []Player{},
		UndercoverCount: MinUndercover,
		BlankCount:      MinBlank,
		Phase:           PhaseSetup,
	}
}

func (s State) clone() State {
	out := s

	out.Players = make([]Player, len(s.Players))
	copy(out.Players, s.Players)

	if s.Words != nil {
		words := *s.Words
		out.Words = &words
	}

	return out
}

// Validate reports whether s is a state the controller could have produced.
func (s State) Validate() error {
	switch s.Phase {
	case PhaseSetup, PhaseReveal, PhaseDiscuss:
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}

	if s.UndercoverCount < MinUndercover || s.UndercoverCount > MaxUndercover {
		return fmt.Errorf("%w: undercover count %d out of range", ErrInvalidState, s.UndercoverCount)
	}

	if s.BlankCount < MinBlank || s.BlankCount > MaxBlank {
		return fmt.Errorf("%w: blank count %d out of range", ErrInvalidState, s.BlankCount)
	}

	if (s.Words == nil) != (s.Phase == PhaseSetup) {
		return fmt.Errorf("%w: words must be set exactly when a game is running", ErrInvalidState)
	}

	seen := make(map[string]bool, len(s.Players))
	for _, p := range s.Players {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("%w: missing or duplicate player id", ErrInvalidState)
		}
		seen[p.ID] = true

		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: player %s has no name", ErrInvalidState, p.ID)
		}

		if s.Phase == PhaseSetup && p.Role != "" {
			return fmt.Errorf("%w: player %s has a role before the game started", ErrInvalidState, p.ID)
		}

		if s.Phase != PhaseSetup && !p.Role.valid() {
			return fmt.Errorf("%w: player %s has role %q", ErrInvalidState, p.ID, p.Role)
		}
	}

	tally := tallyOf(s.Players)

	switch s.Phase {
	case PhaseReveal:
		if s.RevealIndex < 0 || s.RevealIndex >= len(s.Players) {
			return fmt.Errorf("%w: reveal index %d out of range", ErrInvalidState, s.RevealIndex)
		}
		if len(s.Players) < MinPlayers || tally.Undercovers != s.UndercoverCount || tally.Blanks != s.BlankCount {
			return fmt.Errorf("%w: role assignment does not match configuration", ErrInvalidState)
		}
	case PhaseDiscuss:
		if checkWinner(tally) != NoWinner {
			return fmt.Errorf("%w: discussion state is already decided", ErrInvalidState)
		}
	}

	return nil
}
