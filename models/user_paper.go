package models

import "time"

// UserPaper ist ein einzelnes Like/Dislike-Ereignis. Die Tabelle ist ein
// Append-only-Log: Zeilen werden nie aktualisiert oder gelöscht, mehrere
// Einträge pro (User, Paper) sind erlaubt.
type UserPaper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserID  uint   `json:"user_id" gorm:"index;not null"`
	PaperID string `json:"paper_id" gorm:"size:64;index;not null"`
	Liked   bool   `json:"liked"`
}

// TableName gibt explizit den Tabellennamen an.
func (UserPaper) TableName() string {
	return "user_papers"
}
