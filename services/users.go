package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-scout/models"
)

// UserService verwaltet registrierte Chat-Konten.
type UserService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewUserService erstellt eine neue Instanz des UserService.
func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

// SignUp registriert eine externe Chat-Account-ID. Der Aufruf ist
// idempotent: existiert der Nutzer bereits, passiert nichts und das erste
// Ergebnis ist false.
func (s *UserService) SignUp(ctx context.Context, tgID int64) (bool, error) {
	existing, err := s.GetByTgID(ctx, tgID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	user := models.User{TgID: tgID}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// Sign-up-Rennen zweier gleichzeitiger Requests: der zweite
		// verliert und ist damit trotzdem registriert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	s.Logger.Info("User signed up", zap.Int64("tg_id", tgID), zap.Uint("user_id", user.ID))
	return true, nil
}

// GetByTgID liefert den Nutzer zur externen ID oder (nil, nil).
func (s *UserService) GetByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("tg_id = ?", tgID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Interactions liefert alle Feedback-Ereignisse eines Nutzers in
// Einfüge-Reihenfolge.
func (s *UserService) Interactions(ctx context.Context, userID uint) ([]models.UserPaper, error) {
	var interactions []models.UserPaper
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&interactions).Error
	if err != nil {
		return nil, err
	}
	return interactions, nil
}
