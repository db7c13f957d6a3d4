package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paper-scout/providers"
)

// IngestReport fasst einen Ingestion-Lauf zusammen.
type IngestReport struct {
	JobID      string        `json:"job_id"`
	Accepted   int           `json:"accepted"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Elapsed    time.Duration `json:"elapsed"`
}

// IngestService befüllt den Katalog aus einem Bulk-Dump. Der Lauf ist ein
// einzelner Batch-Prozess; fehlerhafte Zeilen werden gezählt und
// übersprungen, nie bricht eine einzelne Zeile den Batch ab.
type IngestService struct {
	Catalog    *CatalogService
	Normalizer *RecordNormalizer
	Logger     *zap.Logger
}

// NewIngestService erstellt eine neue Instanz des IngestService.
func NewIngestService(catalog *CatalogService, normalizer *RecordNormalizer, logger *zap.Logger) *IngestService {
	return &IngestService{Catalog: catalog, Normalizer: normalizer, Logger: logger}
}

// Run streamt den Dump aus der Quelle: Zeilenreparatur auf dem Rohtext,
// CSV-Dekodierung, Normalisierung, Insert. maxRecords begrenzt die Anzahl
// verarbeiteter Zeilen; 0 bedeutet unbegrenzt. Nur Storage- und
// Stream-Ausfälle beenden den Lauf vorzeitig.
func (s *IngestService) Run(ctx context.Context, source providers.Source, maxRecords int) (IngestReport, error) {
	report := IngestReport{JobID: uuid.NewString()}
	log := s.Logger.With(zap.String("job_id", report.JobID), zap.String("source", source.Name()))

	raw, err := source.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("open dump: %w", err)
	}
	defer raw.Close()

	start := time.Now()
	log.Info("Filling catalog from dump", zap.Int("max_records", maxRecords))

	reader := csv.NewReader(repairStream(raw))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return report, fmt.Errorf("read dump header: %w", err)
	}

	for {
		if maxRecords > 0 && report.Accepted+report.Skipped >= maxRecords {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// kaputte CSV-Zeile: überspringen und weiter
				report.Skipped++
				log.Debug("Unparseable dump row skipped", zap.Error(err))
				continue
			}
			// Stream weg: jeder weitere Read liefert denselben Fehler
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("read dump: %w", err)
		}
		if len(record) != len(header) {
			report.Skipped++
			continue
		}

		row := make(map[string]string, len(header))
		for i, key := range header {
			row[key] = record[i]
		}

		paper, err := s.Normalizer.Normalize(row)
		if err != nil {
			report.Skipped++
			if !errors.Is(err, ErrMalformedRecord) {
				log.Warn("Unexpected normalizer error", zap.Error(err))
			}
			continue
		}

		if err := s.Catalog.Insert(ctx, paper); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				report.Skipped++
				report.Duplicates++
				log.Warn("Duplicate paper id in dump", zap.String("paper_id", paper.ID))
				continue
			}
			// Storage weg: der Batch kann nicht sinnvoll weiterlaufen
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("insert paper %s: %w", paper.ID, err)
		}
		report.Accepted++
	}

	report.Elapsed = time.Since(start)
	log.Info("Catalog fill completed",
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped", report.Skipped),
		zap.Int("duplicates", report.Duplicates),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// repairStream wendet RepairLine zeilenweise auf den Rohtext an, bevor der
// CSV-Reader ihn sieht. Die Reparatur arbeitet auf Textebene, weil der
// Export vorher kein gültiges strukturiertes Format ist.
func repairStream(raw io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		scanner := bufio.NewScanner(raw)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			if _, err := io.WriteString(pw, RepairLine(scanner.Text())+"\n"); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(scanner.Err())
	}()
	return pr
}
