/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

type Winner string

const (
	NoWinner       Winner = "none"
	CiviliansWin   Winner = "civilians"
	UndercoversWin Winner = "undercovers"
)

func (w Winner) String() string {
	return string(w)
}

// Message is the announcement shown when a game ends.
func (w Winner) Message() string {
	switch w {
	case CiviliansWin:
		return "Civilians win!"
	case UndercoversWin:
		return "Undercovers win!"
	default:
		return ""
	}
}

// Tally counts remaining players per role.
type Tally struct {
	Civilians   int `json:"civilians"`
	Undercovers int `json:"undercovers"`
	Blanks      int `json:"blanks"`
}

// Outcome describes a confirmed elimination.
type Outcome struct {
	Eliminated Player
	Winner     Winner
	Remaining  Tally
}

func tallyOf(players []Player) Tally {
	var t Tally

	for _, p := range players {
		switch p.Role {
		case RoleCivilian:
			t.Civilians++
		case RoleUndercover:
			t.Undercovers++
		case RoleBlank:
			t.Blanks++
		}
	}

	return t
}

// checkWinner applies the win rules in order. Blanks side with nobody.
func checkWinner(t Tally) Winner {
	switch {
	case t.Undercovers == 0:
		return CiviliansWin
	case t.Undercovers >= t.Civilians:
		return UndercoversWin
	default:
		return NoWinner
	}
}

func (c *Controller) Tally() Tally {
	return tallyOf(c.state.Players)
}

func (c *Controller) find(id string) (int, error) {
	for i, p := range c.state.Players {
		if p.ID == id {
			return i, nil
		}
	}

	return -1, ErrPlayerNotFound
}

// PreviewElimination returns the nominated player, role included, so it can
// be shown before the elimination is confirmed.
func (c *Controller) PreviewElimination(id string) (Player, error) {
	if err := c.requirePhase(PhaseDiscuss); err != nil {
		return Player{}, err
	}

	i, err := c.find(id)
	if err != nil {
		return Player{}, err
	}

	return c.state.Players[i], nil
}

// ConfirmElimination removes the player with the given id and checks for a
// winner. When the game is decided, the controller is reset before
// returning.
func (c *Controller) ConfirmElimination(id string) (Outcome, error) {
	if err := c.requirePhase(PhaseDiscuss); err != nil {
		return Outcome{}, err
	}

	i, err := c.find(id)
	if err != nil {
		return Outcome{}, err
	}

	eliminated := c.state.Players[i]
	c.state.Players = append(c.state.Players[:i], c.state.Players[i+1:]...)

	remaining := c.Tally()
	outcome := Outcome{
		Eliminated: eliminated,
		Winner:     checkWinner(remaining),
		Remaining:  remaining,
	}

	if outcome.Winner != NoWinner {
		c.Reset()
	}

	return outcome, nil
}
