package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"paper-scout/models"
)

// PaperSeed ist der Ausschnitt des zuletzt gelikten Papers, den das
// Scoring-Modell zu sehen bekommt.
type PaperSeed struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Scorer ist das Orakel hinter der Empfehlung: es liefert eine geordnete
// Kandidatenliste von Paper-IDs. Die Implementierung ist austauschbar und
// wird in Tests durch einen Stub ersetzt.
type Scorer interface {
	// Score bewertet Kandidaten. lastLiked darf nil sein (anonymer oder
	// neuer Nutzer), seenIDs darf leer sein.
	Score(lastLiked *PaperSeed, seenIDs map[string]bool) []string
}

// Recommend ist der reine Auswahl-Schritt: Scorer befragen, bereits
// gesehene IDs herausfiltern, Reihenfolge beibehalten. Kein Storage-Zugriff.
func Recommend(scorer Scorer, lastLiked *PaperSeed, seenIDs map[string]bool) []string {
	candidates := scorer.Score(lastLiked, seenIDs)
	result := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if seenIDs[id] {
			continue
		}
		result = append(result, id)
	}
	return result
}

// PoolScorer ist das Default-Orakel: ein Snapshot der Katalog-IDs,
// absteigend nach Zitationszahl als Popularitäts-Prior. Der Snapshot wird
// per Cron aus dem Katalog aufgefrischt, damit er mit einer parallel
// laufenden Ingestion Schritt hält.
type PoolScorer struct {
	Catalog *CatalogService
	Logger  *zap.Logger
	Limit   int

	mu   sync.RWMutex
	pool []string
}

// NewPoolScorer erstellt einen PoolScorer ohne initialen Snapshot.
// Refresh muss vor der ersten Empfehlung einmal gelaufen sein.
func NewPoolScorer(catalog *CatalogService, logger *zap.Logger, limit int) *PoolScorer {
	return &PoolScorer{Catalog: catalog, Logger: logger, Limit: limit}
}

// Refresh zieht einen frischen ID-Snapshot aus dem Katalog.
func (p *PoolScorer) Refresh(ctx context.Context) error {
	ids, err := p.Catalog.AllIDsByCitation(ctx, p.Limit)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.pool = ids
	p.mu.Unlock()
	p.Logger.Info("Scorer pool refreshed", zap.Int("pool_size", len(ids)))
	return nil
}

// Score liefert den Pool in Prior-Reihenfolge, gesehene IDs übersprungen.
func (p *PoolScorer) Score(_ *PaperSeed, seenIDs map[string]bool) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.pool))
	for _, id := range p.pool {
		if seenIDs[id] {
			continue
		}
		out = append(out, id)
	}
	return out
}

// RecommendService orchestriert eine Empfehlung: Nutzerzustand lesen,
// Selector aufrufen, Kandidaten in Reihenfolge gegen den Katalog auflösen.
type RecommendService struct {
	Users   *UserService
	Catalog *CatalogService
	Scorer  Scorer
	Logger  *zap.Logger
}

// NewRecommendService erstellt eine neue Instanz des RecommendService.
func NewRecommendService(users *UserService, catalog *CatalogService, scorer Scorer, logger *zap.Logger) *RecommendService {
	return &RecommendService{Users: users, Catalog: catalog, Scorer: scorer, Logger: logger}
}

// NextPaper liefert das nächste empfohlene Paper für eine externe
// Chat-Account-ID, oder (nil, nil) wenn kein Kandidat auflösbar ist.
// Unbekannte Nutzer bekommen den anonymen Pfad: kein Seed, leere Seen-Menge.
func (s *RecommendService) NextPaper(ctx context.Context, tgID int64) (*models.Paper, error) {
	var lastLiked *PaperSeed
	seenIDs := map[string]bool{}

	user, err := s.Users.GetByTgID(ctx, tgID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.LastLikedPaperID != nil {
			paper, err := s.Catalog.GetByID(ctx, *user.LastLikedPaperID)
			if err != nil {
				return nil, err
			}
			// Der Zeiger ist eine schwache Referenz: zeigt er ins Leere,
			// läuft die Empfehlung ohne Seed weiter.
			if paper != nil {
				lastLiked = &PaperSeed{Title: paper.Title, Abstract: paper.Abstract}
			}
		}
		interactions, err := s.Users.Interactions(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		for _, interaction := range interactions {
			seenIDs[interaction.PaperID] = true
		}
	}

	candidates := Recommend(s.Scorer, lastLiked, seenIDs)
	for _, id := range candidates {
		paper, err := s.Catalog.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if paper != nil {
			return paper, nil
		}
	}

	s.Logger.Debug("No recommendation resolved", zap.Int64("tg_id", tgID),
		zap.Int("candidates", len(candidates)))
	return nil, nil
}
