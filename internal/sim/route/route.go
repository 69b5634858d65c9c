package route

import (
	"fmt"

	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/geom"
)

// Kind names one atomic movement instruction.
type Kind string

const (
	// KindStep displaces the actor by its speed, Count times.
	KindStep Kind = "step"
	// KindTileStep steps until the position is tile-aligned, Count tiles.
	KindTileStep Kind = "tile_step"
	// KindTurn updates facing only.
	KindTurn Kind = "turn"
	// KindTowardTarget steps once along the axis of greater distance to the
	// target, decreasing it.
	KindTowardTarget Kind = "toward_target"
	// KindAwayFromTarget steps once along that axis, increasing the distance.
	KindAwayFromTarget Kind = "away_from_target"
)

// Command is one validated movement instruction. Commands are consumed
// strictly in order.
type Command struct {
	Kind      Kind
	Direction geom.Direction // step, tile_step, turn
	Count     int            // step/tile_step repeat, at least 1
	TargetID  string         // toward_target, away_from_target
}

// Step and friends are convenience constructors used by gameplay code.
func Step(d geom.Direction, count int) Command {
	if count < 1 {
		count = 1
	}
	return Command{Kind: KindStep, Direction: d, Count: count}
}

func TileStep(d geom.Direction, count int) Command {
	if count < 1 {
		count = 1
	}
	return Command{Kind: KindTileStep, Direction: d, Count: count}
}

func Turn(d geom.Direction) Command {
	return Command{Kind: KindTurn, Direction: d, Count: 1}
}

func Toward(targetID string) Command {
	return Command{Kind: KindTowardTarget, TargetID: targetID, Count: 1}
}

func Away(targetID string) Command {
	return Command{Kind: KindAwayFromTarget, TargetID: targetID, Count: 1}
}

// Parse validates wire commands into an executable route. A malformed command
// is a configuration error at route construction, never a per-step failure.
func Parse(cmds []protocol.RouteCommand) ([]Command, error) {
	out := make([]Command, 0, len(cmds))
	for i, c := range cmds {
		parsed, err := parseOne(c)
		if err != nil {
			return nil, fmt.Errorf("route command %d: %w", i, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseOne(c protocol.RouteCommand) (Command, error) {
	count := c.Count
	if count < 1 {
		count = 1
	}
	dir := geom.Direction(c.Direction)

	switch Kind(c.Kind) {
	case KindStep, KindTileStep:
		if !dir.Valid() {
			return Command{}, fmt.Errorf("invalid direction %d", c.Direction)
		}
		return Command{Kind: Kind(c.Kind), Direction: dir, Count: count}, nil
	case KindTurn:
		if !dir.Valid() {
			return Command{}, fmt.Errorf("invalid direction %d", c.Direction)
		}
		return Command{Kind: KindTurn, Direction: dir, Count: 1}, nil
	case KindTowardTarget, KindAwayFromTarget:
		if c.TargetID == "" {
			return Command{}, fmt.Errorf("missing target_id")
		}
		return Command{Kind: Kind(c.Kind), TargetID: c.TargetID, Count: 1}, nil
	default:
		return Command{}, fmt.Errorf("unknown kind %q", c.Kind)
	}
}
