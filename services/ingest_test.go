package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-scout/providers"
)

var dumpHeader = []string{
	"id", "title", "authors", "venue", "year", "keywords", "fos",
	"references", "n_citation", "page_start", "page_end", "lang",
	"volume", "issue", "issn", "isbn", "doi", "pdf", "url", "abstract",
}

// writeDump baut eine Dump-Datei aus Zeilen im Spaltenformat des Exports.
func writeDump(t *testing.T, rows []map[string]string) providers.Source {
	t.Helper()
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	require.NoError(t, w.Write(dumpHeader))
	for _, row := range rows {
		record := make([]string, len(dumpHeader))
		for i, key := range dumpHeader {
			record[i] = row[key]
		}
		require.NoError(t, w.Write(record))
	}
	w.Flush()
	require.NoError(t, w.Error())

	path := filepath.Join(t.TempDir(), "dump.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return providers.NewFileSource(path)
}

func newIngestFixture(t *testing.T) (*CatalogService, *IngestService) {
	t.Helper()
	catalog := NewCatalogService(newTestDB(t), testLogger(t))
	ingest := NewIngestService(catalog, NewRecordNormalizer(testLogger(t)), testLogger(t))
	return catalog, ingest
}

func TestIngestRun(t *testing.T) {
	ctx := context.Background()
	catalog, ingest := newIngestFixture(t)

	source := writeDump(t, []map[string]string{
		{
			"id":         "1",
			"title":      "First paper",
			"authors":    `[{'id': 1, 'name': 'Ada Lovelace'}]`,
			"venue":      `{'id': 7, 'name': 'JACM'}`,
			"year":       "2007",
			"keywords":   `['computing']`,
			"references": `[NumberInt(100), NumberInt(101)]`,
			"n_citation": "NumberInt(12)",
			"lang":       "en",
			"url":        `['https://a.example']`,
			"abstract":   "Some abstract",
		},
		{
			"id":      "2",
			"title":   "No id author",
			"authors": `[{'name': 'Ghost'}]`,
			"venue":   `{}`,
			"year":    "2019",
		},
		{"title": "Missing id row", "year": "2019"},
		{"id": "1", "title": "Duplicate id", "year": "2020"},
		{"id": "3", "title": "Last good", "year": "2019"},
	})

	report, err := ingest.Run(ctx, source, 6000)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Duplicates)
	assert.NotEmpty(t, report.JobID)

	t.Run("accepted papers are queryable", func(t *testing.T) {
		paper, err := catalog.GetByID(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "First paper", paper.Title)
		assert.Equal(t, 12, paper.NCitation, "number wrapper unwrapped before parsing")
		assert.Equal(t, []string{"100", "101"}, paper.ReferenceIDs())
		require.NotNil(t, paper.Year)
		assert.Equal(t, 2007, *paper.Year)

		venue, ok := paper.VenueRecord()
		require.True(t, ok)
		assert.Equal(t, int64(7), venue.ID)
	})

	t.Run("incomplete sub-records were cleaned", func(t *testing.T) {
		paper, err := catalog.GetByID(ctx, "2")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Nil(t, paper.Venue, "empty venue does not survive ingestion")
		assert.Empty(t, paper.AuthorList())
	})

	t.Run("duplicate did not overwrite", func(t *testing.T) {
		paper, err := catalog.GetByID(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, paper.Year)
		assert.Equal(t, 2007, *paper.Year)
	})
}

func TestIngestRowCap(t *testing.T) {
	ctx := context.Background()
	catalog, ingest := newIngestFixture(t)

	source := writeDump(t, []map[string]string{
		{"id": "1", "year": "2000"},
		{"id": "2", "year": "2001"},
		{"id": "3", "year": "2002"},
	})

	report, err := ingest.Run(ctx, source, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)

	count, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

// readerSource liefert einen vorgefertigten Stream, um Transportfehler
// ohne echte Quelle nachzustellen.
type readerSource struct {
	r io.Reader
}

func (s readerSource) Open(context.Context) (io.ReadCloser, error) { return io.NopCloser(s.r), nil }
func (s readerSource) Name() string                                { return "stream" }

func TestIngestStreamFailureAborts(t *testing.T) {
	ctx := context.Background()
	errBroken := errors.New("connection reset by peer")
	_, ingest := newIngestFixture(t)

	// Header und eine gute Zeile, danach reißt die Verbindung ab.
	source := readerSource{r: io.MultiReader(
		strings.NewReader("id,title,year\n1,Valid,2001\n"),
		iotest.ErrReader(errBroken),
	)}

	report, err := ingest.Run(ctx, source, 6000)
	require.ErrorIs(t, err, errBroken)
	assert.Equal(t, 1, report.Accepted)
	assert.Zero(t, report.Skipped, "a dead stream is not a row-level defect")
}

func TestIngestMalformedCsvRowSkipped(t *testing.T) {
	ctx := context.Background()
	catalog, ingest := newIngestFixture(t)

	raw := "id,title,year\n1,Valid,2001\n2,bad\"quote,2002\n"
	source := readerSource{r: strings.NewReader(raw)}

	report, err := ingest.Run(ctx, source, 6000)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Skipped)

	count, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestIngestEmptyDump(t *testing.T) {
	ctx := context.Background()
	_, ingest := newIngestFixture(t)

	source := writeDump(t, nil)
	report, err := ingest.Run(ctx, source, 6000)
	require.NoError(t, err)
	assert.Zero(t, report.Accepted)
	assert.Zero(t, report.Skipped)
}
