package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/commander"
	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// SnapshotVersion is the current GameStateData layout version.
const SnapshotVersion = 1

// PlayerData is one seat of a snapshot, listed in seat order.
type PlayerData struct {
	ID            rules.PlayerID          `json:"id"`
	Life          int                     `json:"life"`
	Eliminated    bool                    `json:"eliminated,omitempty"`
	Reason        rules.EliminationReason `json:"reason,omitempty"`
	LandsPlayed   int                     `json:"lands_played,omitempty"`
	DrewFromEmpty bool                    `json:"drew_from_empty,omitempty"`
}

// CardData is one card of a snapshot. Players are referenced by seat index.
type CardData struct {
	ID              rules.CardID         `json:"id"`
	CardName        string               `json:"card_name"`
	CardType        string               `json:"card_type"`
	OwnerIndex      int                  `json:"owner_index"`
	ControllerIndex int                  `json:"controller_index"`
	Zone            rules.Zone           `json:"zone"`
	Tapped          bool                 `json:"tapped,omitempty"`
	Counters        map[string]int       `json:"counters,omitempty"`
	Commander       bool                 `json:"commander,omitempty"`
	Incarnation     int                  `json:"incarnation,omitempty"`
	Characteristics zone.Characteristics `json:"characteristics"`
	// Permanent is set for battlefield cards; its controller is carried by
	// ControllerIndex.
	Permanent *zone.Permanent `json:"permanent,omitempty"`
}

// ZoneData lists zone contents as indices into GameStateData.Cards.
// Per-player zones are indexed by seat; libraries are top first.
type ZoneData struct {
	Libraries   [][]int            `json:"libraries"`
	Hands       [][]int            `json:"hands"`
	Graveyards  [][]int            `json:"graveyards"`
	Battlefield []int              `json:"battlefield"`
	Stack       []int              `json:"stack"`
	Exile       []int              `json:"exile"`
	CommandZone []int              `json:"command_zone"`
	CardZoneMap map[int]rules.Zone `json:"card_zone_map"`
}

// PendingData is the suspension point the snapshot was taken at.
type PendingData struct {
	Moves            []PendingMove    `json:"moves,omitempty"`
	AttackersPending bool             `json:"attackers_pending,omitempty"`
	BlockersPending  []rules.PlayerID `json:"blockers_pending,omitempty"`
	StepDone         bool             `json:"step_done,omitempty"`
	EndTurnRequested bool             `json:"end_turn_requested,omitempty"`
}

// GameStateData is the serialisable state of a game between two ticks.
type GameStateData struct {
	Version        int                 `json:"version"`
	GameID         string              `json:"game_id"`
	Settings       Settings            `json:"settings"`
	TurnNumber     int                 `json:"turn_number"`
	ActivePlayer   int                 `json:"active_player"`
	Phase          string              `json:"phase"`
	Step           string              `json:"step"`
	HasFirstStrike bool                `json:"has_first_strike,omitempty"`
	Players        []PlayerData        `json:"players"`
	Cards          []CardData          `json:"cards"`
	Zones          ZoneData            `json:"zones"`
	NextCardID     rules.CardID        `json:"next_card_id"`
	Stack          []rules.StackItem   `json:"stack"`
	NextStackID    rules.StackItemID   `json:"next_stack_id"`
	Priority       rules.PriorityState `json:"priority"`
	Combat         combat.State        `json:"combat"`
	Commander      commander.Data      `json:"commander"`
	Monarch        rules.PlayerID      `json:"monarch,omitempty"`
	Pending        PendingData         `json:"pending"`
	Over           bool                `json:"over,omitempty"`
	Winner         rules.PlayerID      `json:"winner,omitempty"`
	EventSeq       uint64              `json:"event_seq"`
}

// Export captures the game state. Cards are listed in ascending id order.
func (g *Game) Export() *GameStateData {
	seats := g.turn.Seats()
	seatIndex := make(map[rules.PlayerID]int, len(seats))
	for i, seat := range seats {
		seatIndex[seat] = i
	}

	ids := g.zones.CardIDs()
	cardIndex := make(map[rules.CardID]int, len(ids))
	data := &GameStateData{
		Version:        SnapshotVersion,
		GameID:         g.id,
		Settings:       g.settings,
		TurnNumber:     g.turn.TurnNumber(),
		ActivePlayer:   seatIndex[g.turn.ActivePlayer()],
		Phase:          g.turn.CurrentPhase().String(),
		Step:           g.turn.CurrentStep().String(),
		HasFirstStrike: g.turn.HasFirstStrike(),
		Cards:          make([]CardData, 0, len(ids)),
		NextCardID:     g.zones.NextID(),
		Stack:          g.stack.List(),
		NextStackID:    g.stack.NextID(),
		Priority:       g.priority.State(),
		Combat:         g.combat.State(),
		Commander:      g.commander.Export(seats),
		Monarch:        g.politics.Holder(),
		Pending: PendingData{
			Moves:            append([]PendingMove(nil), g.pendingMoves...),
			AttackersPending: g.attackersPending,
			BlockersPending:  append([]rules.PlayerID(nil), g.blockersPending...),
			StepDone:         g.stepDone,
			EndTurnRequested: g.endTurnRequested,
		},
		Over:     g.over,
		Winner:   g.winner,
		EventSeq: g.seq,
	}

	for _, seat := range seats {
		p := g.players[seat]
		data.Players = append(data.Players, PlayerData{
			ID:            p.ID,
			Life:          p.Life,
			Eliminated:    p.Eliminated,
			Reason:        p.Reason,
			LandsPlayed:   p.LandsPlayed,
			DrewFromEmpty: p.DrewFromEmpty,
		})
	}

	data.Zones.CardZoneMap = make(map[int]rules.Zone, len(ids))
	for i, id := range ids {
		card, _ := g.zones.Card(id)
		cardIndex[id] = i
		cd := CardData{
			ID:              card.ID,
			CardName:        card.Name(),
			CardType:        card.Characteristics.TypeLine(),
			OwnerIndex:      seatIndex[card.Owner],
			ControllerIndex: seatIndex[card.Controller()],
			Zone:            card.Zone,
			Tapped:          card.Tapped,
			Counters:        card.Counters.Map(),
			Commander:       card.Commander,
			Incarnation:     card.Incarnation,
			Characteristics: card.Characteristics,
		}
		if card.Permanent != nil {
			perm := *card.Permanent
			perm.Controller = ""
			perm.CombatKeywords = append([]zone.Keyword(nil), perm.CombatKeywords...)
			cd.Permanent = &perm
		}
		data.Cards = append(data.Cards, cd)
		data.Zones.CardZoneMap[i] = card.Zone
	}

	indices := func(ids []rules.CardID) []int {
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			out = append(out, cardIndex[id])
		}
		return out
	}
	for _, seat := range seats {
		data.Zones.Libraries = append(data.Zones.Libraries, indices(g.zones.Library(seat)))
		data.Zones.Hands = append(data.Zones.Hands, indices(g.zones.Hand(seat)))
		data.Zones.Graveyards = append(data.Zones.Graveyards, indices(g.zones.Graveyard(seat)))
	}
	data.Zones.Battlefield = indices(g.zones.Battlefield())
	data.Zones.Stack = indices(g.zones.StackCards())
	data.Zones.Exile = indices(g.zones.Exile())
	data.Zones.CommandZone = indices(g.zones.CommandZone())
	return data
}

// Import rebuilds a game from a snapshot. The result passes Check and
// continues from the snapshot's decision.
func Import(data *GameStateData, logger *zap.Logger) (*Game, error) {
	if data == nil {
		return nil, fmt.Errorf("import: nil snapshot")
	}
	if data.Version != SnapshotVersion {
		return nil, fmt.Errorf("import: unsupported snapshot version %d", data.Version)
	}
	if len(data.Players) < 2 {
		return nil, fmt.Errorf("import: at least 2 players required, got %d", len(data.Players))
	}
	seats := make([]rules.PlayerID, len(data.Players))
	for i, p := range data.Players {
		seats[i] = p.ID
	}
	seatAt := func(i int) (rules.PlayerID, error) {
		if i < 0 || i >= len(seats) {
			return "", fmt.Errorf("import: seat index %d out of range", i)
		}
		return seats[i], nil
	}

	g := newGame(data.GameID, seats, data.Settings, logger)

	turnState := rules.TurnState{
		TurnNumber:     data.TurnNumber,
		Step:           data.Step,
		HasFirstStrike: data.HasFirstStrike,
		Seats:          seats,
	}
	active, err := seatAt(data.ActivePlayer)
	if err != nil {
		return nil, err
	}
	turnState.Active = active
	for _, p := range data.Players {
		if p.Eliminated {
			turnState.Eliminated = append(turnState.Eliminated, p.ID)
		}
		*g.players[p.ID] = Player{
			ID:            p.ID,
			Life:          p.Life,
			Eliminated:    p.Eliminated,
			Reason:        p.Reason,
			LandsPlayed:   p.LandsPlayed,
			DrewFromEmpty: p.DrewFromEmpty,
		}
	}
	if g.turn, err = rules.RestoreTurnManager(turnState); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	cards := make([]*zone.Card, len(data.Cards))
	for i, cd := range data.Cards {
		owner, err := seatAt(cd.OwnerIndex)
		if err != nil {
			return nil, err
		}
		card := zone.NewCard(cd.ID, owner, cd.Characteristics)
		card.Zone = cd.Zone
		card.Tapped = cd.Tapped
		card.Counters = counters.FromMap(cd.Counters)
		card.Commander = cd.Commander
		card.Incarnation = cd.Incarnation
		if cd.Permanent != nil {
			controller, err := seatAt(cd.ControllerIndex)
			if err != nil {
				return nil, err
			}
			perm := *cd.Permanent
			perm.Controller = controller
			perm.CombatKeywords = append([]zone.Keyword(nil), perm.CombatKeywords...)
			card.Permanent = &perm
		}
		cards[i] = card
	}

	// Cards are added zone by zone so every zone keeps its order.
	added := make([]bool, len(cards))
	addAll := func(list []int, z rules.Zone, owner rules.PlayerID) error {
		for _, idx := range list {
			if idx < 0 || idx >= len(cards) {
				return fmt.Errorf("import: card index %d out of range", idx)
			}
			card := cards[idx]
			if added[idx] {
				return fmt.Errorf("import: card %d listed twice", card.ID)
			}
			if card.Zone != z {
				return fmt.Errorf("import: card %d is in %s but listed in %s", card.ID, card.Zone, z)
			}
			if owner != "" && card.Owner != owner {
				return fmt.Errorf("import: card %d of %s listed in %s's %s", card.ID, card.Owner, owner, z)
			}
			if err := g.zones.AddCard(card); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			added[idx] = true
		}
		return nil
	}
	perSeat := []struct {
		lists [][]int
		zone  rules.Zone
	}{
		{data.Zones.Libraries, rules.ZoneLibrary},
		{data.Zones.Hands, rules.ZoneHand},
		{data.Zones.Graveyards, rules.ZoneGraveyard},
	}
	for _, group := range perSeat {
		for i, list := range group.lists {
			owner, err := seatAt(i)
			if err != nil {
				return nil, err
			}
			if err := addAll(list, group.zone, owner); err != nil {
				return nil, err
			}
		}
	}
	shared := []struct {
		list []int
		zone rules.Zone
	}{
		{data.Zones.Battlefield, rules.ZoneBattlefield},
		{data.Zones.Stack, rules.ZoneStack},
		{data.Zones.Exile, rules.ZoneExile},
		{data.Zones.CommandZone, rules.ZoneCommand},
	}
	for _, group := range shared {
		if err := addAll(group.list, group.zone, ""); err != nil {
			return nil, err
		}
	}
	for i, ok := range added {
		if !ok {
			return nil, fmt.Errorf("import: card %d is in no zone list", cards[i].ID)
		}
	}
	g.zones.SetNextID(data.NextCardID)

	g.stack = rules.RestoreStack(data.Stack, data.NextStackID)
	g.priority = rules.RestorePriorityManager(data.Priority)
	g.combat.Restore(data.Combat)
	g.commander.Import(data.Commander)
	g.politics.Restore(data.Monarch)

	g.pendingMoves = append([]PendingMove(nil), data.Pending.Moves...)
	g.attackersPending = data.Pending.AttackersPending
	g.blockersPending = append([]rules.PlayerID(nil), data.Pending.BlockersPending...)
	g.stepDone = data.Pending.StepDone
	g.endTurnRequested = data.Pending.EndTurnRequested
	g.over = data.Over
	g.winner = data.Winner
	g.seq = data.EventSeq

	g.wire()
	g.rebuildTriggers()
	if err := g.Check(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	g.logger.Debug("game imported",
		zap.Int("turn", g.turn.TurnNumber()),
		zap.Int("cards", len(cards)),
	)
	return g, nil
}

// Restore replaces the game state with the snapshot. Bus subscribers stay
// attached; published events after the snapshot are dropped from the
// outbox.
func (g *Game) Restore(data *GameStateData) error {
	fresh, err := Import(data, g.root)
	if err != nil {
		return err
	}
	bus := g.bus
	var outbox []rules.Event
	for _, ev := range g.outbox {
		if ev.Seq <= fresh.seq {
			outbox = append(outbox, ev)
		}
	}
	*g = *fresh
	g.bus = bus
	g.outbox = outbox
	g.wire()
	g.rebuildTriggers()
	g.logger.Info("game restored",
		zap.Int("turn", g.turn.TurnNumber()),
		zap.String("step", g.turn.CurrentStep().String()),
	)
	return nil
}
