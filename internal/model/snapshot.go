package model

import "time"

// Snapshot is a rasterized prefix of a board's history, pinned at a seq,
// with a world-space origin offset so events after that seq replay on top
// of it unmodified. At most one snapshot exists per board; it is advisory
// and may be regenerated at any time.
type Snapshot struct {
	BoardID   string    `gorm:"primaryKey;type:varchar(64)" json:"boardId"`
	Seq       int64     `gorm:"not null" json:"seq"`
	ImageData string    `gorm:"type:text;not null" json:"imageData"`
	OffsetX   float64   `gorm:"not null" json:"offsetX"`
	OffsetY   float64   `gorm:"not null" json:"offsetY"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Snapshot) TableName() string {
	return "board_snapshots"
}
