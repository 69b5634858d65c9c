package zone

// Hooks are the gameplay callbacks invoked synchronously on the zone
// goroutine at transition points. Implementations must not block; heavy work
// belongs on the caller's side of a channel.
type Hooks interface {
	// OnJoinMap runs after a player actor is registered on the map.
	OnJoinMap(a *Actor)
	// OnLeaveMap runs after forced shape exits, before the actor is dropped.
	OnLeaveMap(a *Actor)
	// OnEventInit runs once when an event actor is spawned.
	OnEventInit(a *Actor)
	// OnInShape fires exactly once when an actor starts overlapping a shape.
	OnInShape(a *Actor, s *Shape)
	// OnOutShape fires exactly once when an actor stops overlapping a shape.
	OnOutShape(a *Actor, s *Shape)
	// OnMove runs after any committed displacement, including clamped partial
	// moves where only one axis advanced.
	OnMove(a *Actor)
	// CanChangeMap gates a map-change request for the actor.
	CanChangeMap(a *Actor, targetMapID string) bool
}

// NopHooks is the default when no gameplay scripts are attached.
type NopHooks struct{}

func (NopHooks) OnJoinMap(*Actor)               {}
func (NopHooks) OnLeaveMap(*Actor)              {}
func (NopHooks) OnEventInit(*Actor)             {}
func (NopHooks) OnInShape(*Actor, *Shape)       {}
func (NopHooks) OnOutShape(*Actor, *Shape)      {}
func (NopHooks) OnMove(*Actor)                  {}
func (NopHooks) CanChangeMap(*Actor, string) bool { return true }
