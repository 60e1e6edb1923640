/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

var (
	ErrEmptyName           = errors.New("player name must not be empty")
	ErrWrongPhase          = errors.New("action not allowed in the current phase")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNotEnoughPlayers    = errors.New("need at least 3 players")
	ErrTooManySpecialRoles = errors.New("too many special roles")
	ErrEmptyCatalog        = errors.New("no word pairs available")
	ErrInvalidState        = errors.New("invalid game state")
)
