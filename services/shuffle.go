package services

import (
	"math/rand"

	"paper-scout/models"
)

// ShufflePick mischt die Trefferliste mit der übergebenen Zufallsquelle
// und liefert bis zu k Paper zurück. Die Quelle wird injiziert, damit
// Tests mit festem Seed deterministisch bleiben.
func ShufflePick(rng *rand.Rand, papers []models.Paper, k int) []models.Paper {
	if len(papers) == 0 || k <= 0 {
		return nil
	}
	shuffled := make([]models.Paper, len(papers))
	copy(shuffled, papers)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if k > len(shuffled) {
		k = len(shuffled)
	}
	return shuffled[:k]
}
