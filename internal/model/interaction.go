package model

import "time"

// InteractionRecord 代表一次完整的问答交互，落库用于事后督导。
type InteractionRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Identity      string    `gorm:"index;size:255;not null" json:"identity"`
	Question      string    `gorm:"type:text;not null" json:"question"`
	Answer        string    `gorm:"type:text;not null" json:"answer"`
	ContextUsed   bool      `json:"contextUsed"`
	ContextChunks int       `json:"contextChunks"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (InteractionRecord) TableName() string {
	return "interaction_records"
}
