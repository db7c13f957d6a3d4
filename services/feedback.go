package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-scout/models"
)

// FeedbackService wendet Like/Dislike-Ereignisse an. Zeiger-Update und
// Interaktionszeile laufen zusammen in einer Transaktion, damit nie nur
// die Hälfte eines Ereignisses persistiert wird.
type FeedbackService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewFeedbackService erstellt eine neue Instanz des FeedbackService.
func NewFeedbackService(db *gorm.DB, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{DB: db, Logger: logger}
}

// Apply verarbeitet ein Feedback-Ereignis:
//   - unbekannte externe ID: No-op, Feedback unregistrierter Nutzer wird
//     verworfen, nicht als Fehler gemeldet
//   - liked: Last-Liked-Zeiger auf paperID setzen, Interaktionszeile anhängen
//   - disliked: Zeiger nur löschen, wenn er genau auf paperID zeigt;
//     Interaktionszeile wird immer angehängt
//
// Das zweite Ergebnis ist true, wenn das Ereignis angewendet wurde.
func (s *FeedbackService) Apply(ctx context.Context, tgID int64, paperID string, liked bool) (bool, error) {
	applied := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("tg_id = ?", tgID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.Logger.Debug("Feedback from unregistered user ignored",
					zap.Int64("tg_id", tgID), zap.String("paper_id", paperID))
				return nil
			}
			return err
		}

		if liked {
			err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("last_liked_paper_id", paperID).Error
			if err != nil {
				return err
			}
		} else if user.LastLikedPaperID != nil && *user.LastLikedPaperID == paperID {
			err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("last_liked_paper_id", nil).Error
			if err != nil {
				return err
			}
		}

		interaction := models.UserPaper{UserID: user.ID, PaperID: paperID, Liked: liked}
		if err := tx.Create(&interaction).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
