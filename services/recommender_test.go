package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScorer gibt eine feste Kandidatenliste zurück und protokolliert,
// womit er aufgerufen wurde.
type stubScorer struct {
	candidates []string
	gotSeed    *PaperSeed
	gotSeen    map[string]bool
}

func (s *stubScorer) Score(lastLiked *PaperSeed, seenIDs map[string]bool) []string {
	s.gotSeed = lastLiked
	s.gotSeen = seenIDs
	return s.candidates
}

func TestRecommendFiltersSeenAndKeepsOrder(t *testing.T) {
	scorer := &stubScorer{candidates: []string{"a", "b", "c", "d"}}
	seen := map[string]bool{"b": true}

	got := Recommend(scorer, nil, seen)
	assert.Equal(t, []string{"a", "c", "d"}, got)
}

func TestPoolScorerOrderAndRefresh(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newTestDB(t), testLogger(t))

	require.NoError(t, catalog.Insert(ctx, makePaper("low", 2000, 1)))
	require.NoError(t, catalog.Insert(ctx, makePaper("high", 2000, 500)))

	scorer := NewPoolScorer(catalog, testLogger(t), 0)
	assert.Empty(t, scorer.Score(nil, nil), "before the first refresh the pool is empty")

	require.NoError(t, scorer.Refresh(ctx))
	assert.Equal(t, []string{"high", "low"}, scorer.Score(nil, map[string]bool{}))
	assert.Equal(t, []string{"low"}, scorer.Score(nil, map[string]bool{"high": true}))
}

func newRecommendFixture(t *testing.T) (*CatalogService, *UserService, *FeedbackService) {
	t.Helper()
	db := newTestDB(t)
	return NewCatalogService(db, testLogger(t)),
		NewUserService(db, testLogger(t)),
		NewFeedbackService(db, testLogger(t))
}

func TestNextPaperForAnonymousUser(t *testing.T) {
	ctx := context.Background()
	catalog, users, _ := newRecommendFixture(t)

	require.NoError(t, catalog.Insert(ctx, makePaper("A", 2007, 10)))
	require.NoError(t, catalog.Insert(ctx, makePaper("B", 2019, 20)))

	scorer := NewPoolScorer(catalog, testLogger(t), 0)
	require.NoError(t, scorer.Refresh(ctx))
	svc := NewRecommendService(users, catalog, scorer, testLogger(t))

	// kein Sign-up für diese ID: anonymer Pfad
	paper, err := svc.NextPaper(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, paper, "anonymous users still get a recommendation")
}

func TestNextPaperResolvesCandidatesInOrder(t *testing.T) {
	ctx := context.Background()
	catalog, users, _ := newRecommendFixture(t)

	require.NoError(t, catalog.Insert(ctx, makePaper("real", 2010, 5)))

	scorer := &stubScorer{candidates: []string{"ghost-1", "ghost-2", "real"}}
	svc := NewRecommendService(users, catalog, scorer, testLogger(t))

	paper, err := svc.NextPaper(ctx, 556)
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "real", paper.ID, "unresolvable candidates are skipped in order")
}

func TestNextPaperNoCandidateResolves(t *testing.T) {
	ctx := context.Background()
	catalog, users, _ := newRecommendFixture(t)

	scorer := &stubScorer{candidates: []string{"ghost-1", "ghost-2"}}
	svc := NewRecommendService(users, catalog, scorer, testLogger(t))

	paper, err := svc.NextPaper(ctx, 557)
	require.NoError(t, err, "an empty outcome is not an error")
	assert.Nil(t, paper)
}

func TestNextPaperThreadsUserState(t *testing.T) {
	ctx := context.Background()
	catalog, users, feedback := newRecommendFixture(t)

	liked := makePaper("liked", 2015, 50)
	liked.Title = "liked title"
	liked.Abstract = "liked abstract"
	require.NoError(t, catalog.Insert(ctx, liked))
	require.NoError(t, catalog.Insert(ctx, makePaper("other", 2016, 10)))

	_, err := users.SignUp(ctx, 777)
	require.NoError(t, err)
	_, err = feedback.Apply(ctx, 777, "liked", true)
	require.NoError(t, err)

	scorer := &stubScorer{candidates: []string{"liked", "other"}}
	svc := NewRecommendService(users, catalog, scorer, testLogger(t))

	paper, err := svc.NextPaper(ctx, 777)
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "other", paper.ID, "already-seen papers never come back")

	require.NotNil(t, scorer.gotSeed, "the scorer sees the last liked paper")
	assert.Equal(t, "liked title", scorer.gotSeed.Title)
	assert.Equal(t, "liked abstract", scorer.gotSeed.Abstract)
	assert.True(t, scorer.gotSeen["liked"])
}

func TestNextPaperWithStaleLastLikedPointer(t *testing.T) {
	ctx := context.Background()
	catalog, users, feedback := newRecommendFixture(t)

	require.NoError(t, catalog.Insert(ctx, makePaper("other", 2016, 10)))

	_, err := users.SignUp(ctx, 778)
	require.NoError(t, err)
	// Feedback auf ein Paper, das nicht (mehr) im Katalog ist: der Zeiger
	// ist eine schwache Referenz und darf ins Leere zeigen.
	_, err = feedback.Apply(ctx, 778, "vanished", true)
	require.NoError(t, err)

	scorer := &stubScorer{candidates: []string{"other"}}
	svc := NewRecommendService(users, catalog, scorer, testLogger(t))

	paper, err := svc.NextPaper(ctx, 778)
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "other", paper.ID)
	assert.Nil(t, scorer.gotSeed, "a dangling pointer yields no seed")
}
