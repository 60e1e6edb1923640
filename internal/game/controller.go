/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game implements the undercover word game: roster setup, secret
// role and word assignment, the pass-the-device reveal loop, and elimination
// with win detection.
//
// A Controller is not safe for concurrent use. Callers are expected to
// serialize actions, one at a time.
package game

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// Catalog supplies the word pairs a game picks from. Pair members are
// unordered; which one belongs to the civilians is decided per game.
type Catalog interface {
	Pairs() [][2]string
}

type Option func(*Controller)

// WithRand sets the random source used for word and role selection.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = r
	}
}

func WithCatalog(catalog Catalog) Option {
	return func(c *Controller) {
		c.catalog = catalog
	}
}

// WithIDs overrides how new players are identified.
func WithIDs(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

type Controller struct {
	state   State
	rng     *rand.Rand
	catalog Catalog
	newID   func() string
}

func New(opts ...Option) *Controller {
	c := &Controller{
		state: DefaultState(),
		newID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state.clone()
}

func (c *Controller) Phase() Phase {
	return c.state.Phase
}

// Restore replaces the current state with s if s is valid. On error the
// current state is kept.
func (c *Controller) Restore(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.state = s.clone()

	return nil
}

// Reset returns the game to its initial setup state from any phase.
func (c *Controller) Reset() {
	c.state = DefaultState()
}

func (c *Controller) requirePhase(phase Phase) error {
	if c.state.Phase != phase {
		return ErrWrongPhase
	}

	return nil
}

func (c *Controller) AddPlayer(name string) (Player, error) {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return Player{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, ErrEmptyName
	}

	p := Player{
		ID:   c.newID(),
		Name: name,
	}
	c.state.Players = append(c.state.Players, p)

	return p, nil
}

func (c *Controller) RemovePlayer(index int) error {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return err
	}

	if index < 0 || index >= len(c.state.Players) {
		return ErrPlayerNotFound
	}

	c.state.Players = append(c.state.Players[:index], c.state.Players[index+1:]...)

	return nil
}

func (c *Controller) ClearPlayers() error {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return err
	}

	c.state.Players = []Player{}

	return nil
}

// SetUndercoverCount stores n clamped to [MinUndercover, MaxUndercover] and
// returns the stored value.
func (c *Controller) SetUndercoverCount(n int) (int, error) {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return c.state.UndercoverCount, err
	}

	c.state.UndercoverCount = clamp(n, MinUndercover, MaxUndercover)

	return c.state.UndercoverCount, nil
}

// SetBlankCount stores n clamped to [MinBlank, MaxBlank] and returns the
// stored value.
func (c *Controller) SetBlankCount(n int) (int, error) {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return c.state.BlankCount, err
	}

	c.state.BlankCount = clamp(n, MinBlank, MaxBlank)

	return c.state.BlankCount, nil
}

// StartGame picks the words, deals the roles and enters the reveal phase.
// Nothing changes if it returns an error.
func (c *Controller) StartGame() error {
	if err := c.requirePhase(PhaseSetup); err != nil {
		return err
	}

	n := len(c.state.Players)

	if n < MinPlayers {
		return ErrNotEnoughPlayers
	}

	if c.state.UndercoverCount+c.state.BlankCount >= n {
		return ErrTooManySpecialRoles
	}

	words, err := c.pickWords()
	if err != nil {
		return err
	}

	roles := buildRoles(n, c.state.UndercoverCount, c.state.BlankCount)
	shuffle(c.rng, roles)

	players := make([]Player, n)
	for i, p := range c.state.Players {
		players[i] = Player{
			ID:   p.ID,
			Name: p.Name,
			Role: roles[i],
		}
	}

	c.state.Players = players
	c.state.Words = &words
	c.state.Phase = PhaseReveal
	c.state.RevealIndex = 0

	return nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
