/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

// Slot is the public view of whose turn it is to look at the device.
type Slot struct {
	Index int
	Total int
	Name  string
}

// Secret is what the current player sees after tapping reveal.
type Secret struct {
	Slot
	Role Role
	Word string
}

// Current returns the reveal slot without its secret.
func (c *Controller) Current() (Slot, error) {
	if err := c.requirePhase(PhaseReveal); err != nil {
		return Slot{}, err
	}

	i := c.state.RevealIndex
	if i < 0 || i >= len(c.state.Players) {
		return Slot{}, ErrWrongPhase
	}

	return Slot{
		Index: i,
		Total: len(c.state.Players),
		Name:  c.state.Players[i].Name,
	}, nil
}

// Reveal returns the role and word of the player whose turn it is. Only the
// current reveal index is ever exposed.
func (c *Controller) Reveal() (Secret, error) {
	slot, err := c.Current()
	if err != nil {
		return Secret{}, err
	}

	role := c.state.Players[slot.Index].Role

	return Secret{
		Slot: slot,
		Role: role,
		Word: c.wordFor(role),
	}, nil
}

func (c *Controller) wordFor(role Role) string {
	switch role {
	case RoleCivilian:
		return c.state.Words.Civilian
	case RoleUndercover:
		return c.state.Words.Undercover
	default:
		return BlankWord
	}
}

// Advance passes the device to the next player, and moves on to discussion
// once everyone has had their turn.
func (c *Controller) Advance() (Phase, error) {
	if err := c.requirePhase(PhaseReveal); err != nil {
		return c.state.Phase, err
	}

	c.state.RevealIndex++
	if c.state.RevealIndex >= len(c.state.Players) {
		c.state.Phase = PhaseDiscuss
	}

	return c.state.Phase, nil
}
