package geom

// Direction is an actor facing. Codes follow the classic RPG wire convention:
// Up=1, Right=2, Down=3, Left=4. Zero is "no direction".
type Direction int

const (
	None  Direction = 0
	Up    Direction = 1
	Right Direction = 2
	Down  Direction = 3
	Left  Direction = 4
)

func (d Direction) Valid() bool {
	return d >= Up && d <= Left
}

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return None
}

// Delta returns the unit displacement for one step in d. Y grows downward.
func (d Direction) Delta() (dx, dy float64) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "none"
}

// Positioning places a shape relative to its owner.
type Positioning string

const (
	// TopLeft anchors the shape's min corner at the owner's position.
	TopLeft Positioning = "top-left"
	// Center centers the shape on the owner's hitbox center.
	Center Positioning = "center"
)

func (p Positioning) Valid() bool {
	return p == TopLeft || p == Center
}
