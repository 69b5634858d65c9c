package geom

// Rect is an axis-aligned rectangle in absolute map pixels. Intervals are
// half-open on both axes: a point on MaxX/MaxY lies outside the rectangle,
// so rectangles that merely touch do not overlap.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX && o.MinX < r.MaxX && r.MinY < o.MaxY && o.MinY < r.MaxY
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if o.MinX < r.MinX {
		r.MinX = o.MinX
	}
	if o.MinY < r.MinY {
		r.MinY = o.MinY
	}
	if o.MaxX > r.MaxX {
		r.MaxX = o.MaxX
	}
	if o.MaxY > r.MaxY {
		r.MaxY = o.MaxY
	}
	return r
}

// Attachment is the geometric part of a shape attached to an actor.
type Attachment struct {
	Width       float64
	Height      float64
	Positioning Positioning
}

// AttachedRect computes the absolute rectangle of an attachment for an owner
// positioned at (x, y) with the given hitbox.
func AttachedRect(x, y, hitW, hitH float64, a Attachment) Rect {
	switch a.Positioning {
	case Center:
		cx := x + hitW/2
		cy := y + hitH/2
		return Rect{
			MinX: cx - a.Width/2,
			MinY: cy - a.Height/2,
			MaxX: cx + a.Width/2,
			MaxY: cy + a.Height/2,
		}
	default: // TopLeft
		return Rect{MinX: x, MinY: y, MaxX: x + a.Width, MaxY: y + a.Height}
	}
}

// HitboxRect is the owner's own rectangle; the hitbox is implicitly top-left
// anchored at the owner's position.
func HitboxRect(x, y, hitW, hitH float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + hitW, MaxY: y + hitH}
}

// MaxBounds returns the smallest rectangle covering the hitbox and every
// attachment. It is recomputed on every call; callers must not cache it
// across a position mutation.
func MaxBounds(x, y, hitW, hitH float64, attachments []Attachment) Rect {
	b := HitboxRect(x, y, hitW, hitH)
	for _, a := range attachments {
		b = b.Union(AttachedRect(x, y, hitW, hitH, a))
	}
	return b
}
