package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-scout/models"
)

// ErrDuplicateID wird bei einem Insert mit bereits vergebener Paper-ID
// zurückgegeben. Duplikate sind ein Caller-Fehler und werden nicht
// stillschweigend zusammengeführt.
var ErrDuplicateID = errors.New("duplicate paper id")

// CatalogService kapselt alle Zugriffe auf den Paper-Katalog. Der Katalog
// wird von der Ingestion befüllt und ist zur Laufzeit read-only.
type CatalogService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewCatalogService erstellt eine neue Instanz des CatalogService.
func NewCatalogService(db *gorm.DB, logger *zap.Logger) *CatalogService {
	return &CatalogService{DB: db, Logger: logger}
}

// Insert legt ein normalisiertes Paper an. Eine ID-Kollision ergibt
// ErrDuplicateID; der Aufrufer entscheidet, ob der Batch weiterläuft.
func (s *CatalogService) Insert(ctx context.Context, paper *models.Paper) error {
	err := s.DB.WithContext(ctx).Create(paper).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, paper.ID)
		}
		return err
	}
	return nil
}

// GetByID liefert ein Paper oder (nil, nil), wenn keins existiert.
// Ein Miss ist ein leeres Ergebnis, kein Fehler.
func (s *CatalogService) GetByID(ctx context.Context, id string) (*models.Paper, error) {
	var paper models.Paper
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&paper).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &paper, nil
}

// FindByYear liefert alle Paper eines Jahrgangs, Reihenfolge undefiniert.
func (s *CatalogService) FindByYear(ctx context.Context, year int) ([]models.Paper, error) {
	var papers []models.Paper
	if err := s.DB.WithContext(ctx).Where("year = ?", year).Find(&papers).Error; err != nil {
		return nil, err
	}
	return papers, nil
}

// FindByAuthor liefert alle Paper, bei denen ein Autorenname den Suchtext
// enthält (case-insensitiv). SQL filtert grob über den JSON-Text vor, die
// genaue Prüfung gegen die dekodierten Namen passiert im Prozess.
func (s *CatalogService) FindByAuthor(ctx context.Context, name string) ([]models.Paper, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}

	var candidates []models.Paper
	pattern := "%" + escapeLike(needle) + "%"
	err := s.DB.WithContext(ctx).
		Where("LOWER(CAST(authors AS TEXT)) LIKE ? ESCAPE '\\'", pattern).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var papers []models.Paper
	for _, paper := range candidates {
		for _, author := range paper.AuthorList() {
			if strings.Contains(strings.ToLower(author.Name), needle) {
				papers = append(papers, paper)
				break
			}
		}
	}
	return papers, nil
}

// HotPapers liefert bis zu limit Paper sortiert nach Zitationszahl.
// Die Sortierung ist aufsteigend; siehe DESIGN.md zur Ordnung dieses
// Endpunkts. Der Test in catalog_test.go pinnt den Kontrakt fest.
func (s *CatalogService) HotPapers(ctx context.Context, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		return nil, nil
	}
	var papers []models.Paper
	err := s.DB.WithContext(ctx).
		Order("n_citation asc").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, err
	}
	return papers, nil
}

// AllIDsByCitation liefert bis zu limit Paper-IDs, absteigend nach
// Zitationszahl. Grundlage für den Kandidatenpool des Default-Scorers.
func (s *CatalogService) AllIDsByCitation(ctx context.Context, limit int) ([]string, error) {
	query := s.DB.WithContext(ctx).
		Model(&models.Paper{}).
		Order("n_citation desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Count liefert die Anzahl der Paper im Katalog.
func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Paper{}).Count(&count).Error
	return count, err
}

// isUniqueViolation erkennt Unique-Constraint-Fehler, die der Treiber
// nicht auf gorm.ErrDuplicatedKey mappt (z.B. ältere Treiberversionen).
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed")
}

// escapeLike maskiert LIKE-Metazeichen im Suchtext.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
