package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/magefree/mage-commander/internal/game"
)

// PlayerSummary is one seat of a GameSummary.
type PlayerSummary struct {
	ID         string `json:"id"`
	Life       int    `json:"life"`
	Eliminated bool   `json:"eliminated,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Hand       int    `json:"hand"`
	Library    int    `json:"library"`
	Graveyard  int    `json:"graveyard"`
}

// GameSummary is the human-sized view of a snapshot.
type GameSummary struct {
	GameID      string          `json:"game_id"`
	Turn        int             `json:"turn"`
	Step        string          `json:"step"`
	Over        bool            `json:"over,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	Monarch     string          `json:"monarch,omitempty"`
	Battlefield int             `json:"battlefield"`
	Stack       int             `json:"stack"`
	Players     []PlayerSummary `json:"players"`
	Checksum    string          `json:"checksum"`
}

func summarize(data *game.GameStateData) (GameSummary, error) {
	sum, err := data.ComputeChecksum()
	if err != nil {
		return GameSummary{}, err
	}
	s := GameSummary{
		GameID:      data.GameID,
		Turn:        data.TurnNumber,
		Step:        data.Step,
		Over:        data.Over,
		Winner:      string(data.Winner),
		Monarch:     string(data.Monarch),
		Battlefield: len(data.Zones.Battlefield),
		Stack:       len(data.Stack),
		Checksum:    sum.Hash,
	}
	for seat, p := range data.Players {
		ps := PlayerSummary{
			ID:         string(p.ID),
			Life:       p.Life,
			Eliminated: p.Eliminated,
			Reason:     string(p.Reason),
		}
		if seat < len(data.Zones.Hands) {
			ps.Hand = len(data.Zones.Hands[seat])
		}
		if seat < len(data.Zones.Libraries) {
			ps.Library = len(data.Zones.Libraries[seat])
		}
		if seat < len(data.Zones.Graveyards) {
			ps.Graveyard = len(data.Zones.Graveyards[seat])
		}
		s.Players = append(s.Players, ps)
	}
	return s, nil
}

func printSummary(w io.Writer, s GameSummary) {
	fmt.Fprintf(w, "Game %s: turn %d, %s\n", s.GameID, s.Turn, s.Step)
	if s.Over {
		if s.Winner == "" {
			fmt.Fprintln(w, "Result: draw")
		} else {
			fmt.Fprintf(w, "Result: %s wins\n", s.Winner)
		}
	}
	if s.Monarch != "" {
		fmt.Fprintf(w, "Monarch: %s\n", s.Monarch)
	}
	fmt.Fprintf(w, "Battlefield: %d  Stack: %d\n", s.Battlefield, s.Stack)
	for _, p := range s.Players {
		status := ""
		if p.Eliminated {
			status = " eliminated (" + strings.ToLower(p.Reason) + ")"
		}
		fmt.Fprintf(w, "  %-12s life %3d  hand %2d  library %3d  graveyard %3d%s\n",
			p.ID, p.Life, p.Hand, p.Library, p.Graveyard, status)
	}
	fmt.Fprintf(w, "Checksum: %s\n", s.Checksum)
}
