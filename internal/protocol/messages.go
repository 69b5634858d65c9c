package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	MapID           string `json:"map_id,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ActorID         string    `json:"actor_id"`
	MapID           string    `json:"map_id"`
	MapParams       MapParams `json:"map_params"`
	ZoneManifest    []ZoneRef `json:"zone_manifest,omitempty"`
}

type MapParams struct {
	TickRateHz  int `json:"tick_rate_hz"`
	WidthTiles  int `json:"width_tiles"`
	HeightTiles int `json:"height_tiles"`
	TileWidth   int `json:"tile_width"`
	TileHeight  int `json:"tile_height"`
}

type ZoneRef struct {
	ZoneID string `json:"zone_id"`
	MapID  string `json:"map_id,omitempty"`
}

// ACT (client -> server): a queued move route or a map-change request.
type ActMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Action          string         `json:"action"` // "move_route" | "change_map"
	Route           []RouteCommand `json:"route,omitempty"`
	TargetMapID     string         `json:"target_map_id,omitempty"`
}

const (
	ActionMoveRoute = "move_route"
	ActionChangeMap = "change_map"
)

// RouteCommand is the wire form of one atomic movement instruction.
type RouteCommand struct {
	Kind      string `json:"kind"`
	Direction int    `json:"direction,omitempty"`
	Count     int    `json:"count,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
}

// FRAME (server -> client): every committed mutation of one tick.
type FrameMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	MapID           string            `json:"map_id"`
	Tick            uint64            `json:"tick"`
	Actors          []ActorDelta      `json:"actors,omitempty"`
	Tiles           []TileEdit        `json:"tiles,omitempty"`
	Transitions     []ShapeTransition `json:"transitions,omitempty"`
	Joins           []string          `json:"joins,omitempty"`
	Leaves          []string          `json:"leaves,omitempty"`
}

// ActorDelta is a dirty actor position/facing as of the end of a tick.
type ActorDelta struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         int     `json:"z"`
	Direction int     `json:"direction"`
}

// TileEdit is one committed static-layer mutation.
type TileEdit struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Layer     string `json:"layer"`
	Tile      int    `json:"tile"`
	Collision bool   `json:"collision"`
}

// ShapeTransition is an enter or exit between an actor and a trigger shape.
type ShapeTransition struct {
	ActorID string `json:"actor_id"`
	Shape   string `json:"shape"`
	Kind    string `json:"kind"` // "in" | "out"
}

const (
	TransitionIn  = "in"
	TransitionOut = "out"
)

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         message,
	}
}
