package model

import "time"

// Board is a named, addressable drawing surface. Once created it is never
// mutated except by deletion; owner/visibility are fixed at creation time.
type Board struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	Name        string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	OwnerID     string    `gorm:"type:varchar(64);index" json:"ownerId,omitempty"`
	IsPrivate   bool      `gorm:"default:false" json:"isPrivate"`
	WorkspaceID *string   `gorm:"type:varchar(64);index" json:"workspaceId,omitempty"`
}

func (Board) TableName() string {
	return "boards"
}
