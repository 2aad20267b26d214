package domain

import "time"

// LogEntry is one audit record of a handled operation.
type LogEntry struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Time     time.Time `gorm:"index" json:"time"`
	Module   string    `gorm:"size:64;index" json:"module"`
	Action   string    `gorm:"size:64" json:"action"`
	UserID   UserID    `json:"userId"`
	UserName string    `gorm:"size:64" json:"userName"`
	Message  string    `json:"message"`
	Success  bool      `json:"success"`
}
