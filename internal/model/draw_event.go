package model

import (
	"encoding/json"
	"time"
)

// DrawEventType enumerates the payload shapes a DrawEvent may carry.
type DrawEventType string

const (
	DrawEventStroke DrawEventType = "stroke"
	DrawEventShape  DrawEventType = "shape"
	DrawEventText   DrawEventType = "text"
	DrawEventDelete DrawEventType = "delete"
	DrawEventClear  DrawEventType = "clear"
)

// Valid reports whether t is one of the five recognized draw event types.
func (t DrawEventType) Valid() bool {
	switch t {
	case DrawEventStroke, DrawEventShape, DrawEventText, DrawEventDelete, DrawEventClear:
		return true
	default:
		return false
	}
}

// DrawEvent is an immutable, server-ordered mutation of a board's canvas.
// Once assigned a seq it is never updated; the (board_id, seq) pair is the
// primary key so the store rejects any attempt to reuse a seq.
type DrawEvent struct {
	BoardID   string          `gorm:"primaryKey;type:varchar(64)" json:"boardId"`
	Seq       int64           `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Type      DrawEventType   `gorm:"type:varchar(16);not null" json:"type"`
	UserID    string          `gorm:"type:varchar(64);not null" json:"userId"`
	Timestamp time.Time       `gorm:"not null" json:"timestamp"`
	Payload   json.RawMessage `gorm:"type:jsonb;not null" json:"payload"`
}

func (DrawEvent) TableName() string {
	return "drawing_events"
}

// Point is a single (x, y) sample in board-space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload is the payload of a DrawEventStroke event.
type StrokePayload struct {
	StrokeID string  `json:"strokeId"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Opacity  float64 `json:"opacity,omitempty"`
	Points   []Point `json:"points"`
}

// ShapeType enumerates the renderable shapes of a ShapePayload.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeEllipse   ShapeType = "ellipse"
	ShapeLine      ShapeType = "line"
)

// ShapePayload is the payload of a DrawEventShape event.
type ShapePayload struct {
	StrokeID  string    `json:"strokeId"`
	ShapeType ShapeType `json:"shapeType"`
	Start     Point     `json:"start"`
	End       Point     `json:"end"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Opacity   float64   `json:"opacity,omitempty"`
}

// TextPayload is the payload of a DrawEventText event.
type TextPayload struct {
	StrokeID string  `json:"strokeId"`
	Text     string  `json:"text"`
	Position Point   `json:"position"`
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// DeletePayload is the payload of a DrawEventDelete event.
type DeletePayload struct {
	StrokeIDs []string `json:"strokeIds"`
}
