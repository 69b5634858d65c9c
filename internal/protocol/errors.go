package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadProtocol     = "E_BAD_PROTOCOL"

	// Map routing/state.
	ErrUnknownMap   = "E_UNKNOWN_MAP"
	ErrMapLoad      = "E_MAP_LOAD"
	ErrMapDenied    = "E_MAP_DENIED"
	ErrUnknownActor = "E_UNKNOWN_ACTOR"

	// Action layer.
	ErrBadRoute     = "E_BAD_ROUTE"
	ErrRouteTooLong = "E_ROUTE_TOO_LONG"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadProtocol:     {},
	ErrUnknownMap:      {},
	ErrMapLoad:         {},
	ErrMapDenied:       {},
	ErrUnknownActor:    {},
	ErrBadRoute:        {},
	ErrRouteTooLong:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
