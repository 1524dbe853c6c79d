package rules

import "strconv"

// PlayerID identifies a seat at the table. It is stable for the whole game.
type PlayerID string

// CardID identifies a physical card (or token) for the whole game, across
// every zone change.
type CardID int

func (id CardID) String() string {
	return strconv.Itoa(int(id))
}

// StackItemID identifies an object on the stack. IDs are handed out in
// ascending order by the Stack and never reused within a game.
type StackItemID int

// NoCard is the zero CardID; real cards start at 1.
const NoCard CardID = 0
