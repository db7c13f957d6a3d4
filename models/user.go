package models

import "time"

// User repräsentiert ein registriertes Chat-Konto. Angelegt wird ein User
// ausschließlich über den expliziten Sign-up, nie implizit.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	// Externe Chat-Account-ID (z.B. Telegram)
	TgID int64 `json:"tg_id" gorm:"column:tg_id;uniqueIndex;not null"`

	// Schwache Referenz auf das zuletzt gelikte Paper. Kein Foreign Key:
	// der Zeiger darf auf ein Paper zeigen, das nicht mehr auffindbar ist.
	LastLikedPaperID *string `json:"last_liked_paper_id,omitempty" gorm:"size:64"`
}

// TableName gibt explizit den Tabellennamen an.
func (User) TableName() string {
	return "users"
}
