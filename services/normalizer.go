package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"paper-scout/models"
)

// ErrMalformedRecord markiert eine Dump-Zeile, die sich nicht zu einem
// gültigen Paper normalisieren lässt. Pro Zeile, nie fatal für den Batch.
var ErrMalformedRecord = errors.New("malformed record")

// ContainerColumns sind die Spalten, deren Zellen Container-Literale
// enthalten sollen. Schlägt die Dekodierung fehl, wird auf eine leere
// Liste zurückgesetzt statt den fehlerhaften Skalar zu behalten.
var ContainerColumns = []string{"venue", "authors", "keywords", "fos", "references", "url"}

var (
	// Die Reparatur läuft über den rohen CSV-Text; in gequoteten Zellen
	// sind eingebettete Anführungszeichen zu "" verdoppelt, die Muster
	// matchen deshalb beide Schreibweisen.
	legacyIDKeyRE   = regexp.MustCompile(`("{1,2})_id("{1,2})`)
	legacyNameKeyRE = regexp.MustCompile(`("{1,2})name_d("{1,2})`)
	numberIntRE     = regexp.MustCompile(`NumberInt\(([0-9]+)\)`)
)

// RepairLine schreibt Legacy-Schreibweisen im Rohtext um, bevor die Zeile
// strukturell geparst wird. Der Upstream-Export ist ohne diese Reparatur
// kein gültiges strukturiertes Format.
func RepairLine(line string) string {
	line = legacyIDKeyRE.ReplaceAllString(line, `${1}id${2}`)
	line = legacyNameKeyRE.ReplaceAllString(line, `${1}name${2}`)
	line = numberIntRE.ReplaceAllString(line, `$1`)
	return line
}

// RecordNormalizer macht aus einer rohen Dump-Zeile ein speicherbares Paper.
type RecordNormalizer struct {
	logger *zap.Logger
}

// NewRecordNormalizer erstellt einen neuen RecordNormalizer.
func NewRecordNormalizer(logger *zap.Logger) *RecordNormalizer {
	return &RecordNormalizer{logger: logger}
}

// Normalize wendet die Reparatur-Pipeline auf eine Zeile an:
// Literal-Dekodierung pro Zelle, Container-Koersion, Entfernen
// unvollständiger Teilrecords, Typkonvertierung der Skalare.
func (n *RecordNormalizer) Normalize(row map[string]string) (*models.Paper, error) {
	record := make(map[string]any, len(row))

	// 1. Zellen materialisieren: Container-Literale dekodieren, alles
	// andere bleibt Skalar. Dekodier-Fehler sind hier kein Fehlerfall.
	for key, cell := range row {
		if decoded, ok := decodeLiteral(cell); ok {
			record[key] = decoded
		} else {
			record[key] = cell
		}
	}

	// 2. Container-Spalten, die keinen Container ergeben haben, auf leere
	// Liste zurücksetzen.
	for _, key := range ContainerColumns {
		val, present := record[key]
		if !present {
			continue
		}
		switch val.(type) {
		case []any, map[string]any:
			// ok
		default:
			record[key] = []any{}
		}
	}

	removeIncompleteAttributes(record)

	return n.buildPaper(record)
}

// removeIncompleteAttributes entfernt Teilrecords ohne Identität: ein
// vorhandenes Venue ohne id-Schlüssel fliegt komplett raus (auch das
// leere, aber vorhandene Venue), Autoren ohne id werden aus der Liste
// gefiltert, die Liste selbst bleibt erhalten.
func removeIncompleteAttributes(record map[string]any) {
	if venue, present := record["venue"]; present {
		keep := false
		if m, ok := venue.(map[string]any); ok {
			_, keep = m["id"]
		}
		if !keep {
			delete(record, "venue")
		}
	}

	if raw, present := record["authors"]; present {
		if list, ok := raw.([]any); ok {
			kept := make([]any, 0, len(list))
			for _, entry := range list {
				m, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				if _, hasID := m["id"]; hasID {
					kept = append(kept, m)
				}
			}
			record["authors"] = kept
		}
	}
}

func (n *RecordNormalizer) buildPaper(record map[string]any) (*models.Paper, error) {
	id := scalarString(record["id"])
	if id == "" {
		return nil, fmt.Errorf("%w: missing paper id", ErrMalformedRecord)
	}

	paper := &models.Paper{
		ID:        id,
		Title:     scalarString(record["title"]),
		Abstract:  scalarString(record["abstract"]),
		PageStart: scalarString(record["page_start"]),
		PageEnd:   scalarString(record["page_end"]),
		Lang:      scalarString(record["lang"]),
		Volume:    scalarString(record["volume"]),
		Issue:     scalarString(record["issue"]),
		ISSN:      scalarString(record["issn"]),
		ISBN:      scalarString(record["isbn"]),
		DOI:       scalarString(record["doi"]),
		PDF:       scalarString(record["pdf"]),
	}

	if year, ok := scalarInt(record["year"]); ok {
		paper.Year = &year
	}
	if count, ok := scalarInt(record["n_citation"]); ok {
		paper.NCitation = count
	}

	var err error
	if paper.Authors, err = marshalContainer(record, "authors"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if paper.Venue, err = marshalContainer(record, "venue"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if paper.Keywords, err = marshalContainer(record, "keywords"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if paper.Fos, err = marshalContainer(record, "fos"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if paper.References, err = marshalContainer(record, "references"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if paper.URLs, err = marshalContainer(record, "url"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	return paper, nil
}

// marshalContainer serialisiert ein Container-Feld für die JSON-Spalte.
// Ein fehlendes Feld ergibt NULL statt eines leeren Dokuments.
func marshalContainer(record map[string]any, key string) (datatypes.JSON, error) {
	val, present := record[key]
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %v", key, err)
	}
	return datatypes.JSON(b), nil
}

// decodeLiteral versucht, eine Zelle als Container- oder Zahlen-Literal zu
// dekodieren. Erst als JSON, dann mit Python-Literal-Reparatur (einfache
// Anführungszeichen, True/False/None). Das zweite Ergebnis ist false, wenn
// die Zelle ein echter Skalar bleibt.
func decodeLiteral(cell string) (any, bool) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil, false
	}
	if v, ok := tryDecodeJSON(trimmed); ok {
		return v, true
	}
	if repaired, ok := pythonLiteralToJSON(trimmed); ok {
		if v, ok := tryDecodeJSON(repaired); ok {
			return v, true
		}
	}
	return nil, false
}

func tryDecodeJSON(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Zelle muss vollständig konsumiert sein, sonst war es kein Literal
	if dec.More() {
		return nil, false
	}
	return v, true
}

// pythonLiteralToJSON übersetzt ein Python-Repr-Literal nach JSON:
// String-Quotes werden zu doppelten, True/False/None zu true/false/null.
// Python quotet Strings mit Apostroph selbst doppelt ("O'Brien"), beide
// Quote-Stile müssen also als String getrackt werden. Verschachtelte
// Strukturen aus dem Pandas-Export sind damit abgedeckt; alles
// Exotischere bleibt als Skalar stehen.
func pythonLiteralToJSON(s string) (string, bool) {
	if !strings.ContainsAny(s, "'[{(") {
		return "", false
	}
	var out strings.Builder
	out.Grow(len(s))
	var quote byte // 0 = außerhalb eines Strings, sonst das öffnende Zeichen
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					switch next := s[i]; next {
					case '\'':
						// \' ist in JSON kein gültiges Escape
						out.WriteByte('\'')
					case '"':
						out.WriteString(`\"`)
					default:
						out.WriteByte('\\')
						out.WriteByte(next)
					}
					continue
				}
				out.WriteByte(c)
			case quote:
				quote = 0
				out.WriteByte('"')
			case '"':
				out.WriteString(`\"`)
			default:
				out.WriteByte(c)
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			out.WriteByte('"')
		case '(':
			// Tupel als Liste behandeln
			out.WriteByte('[')
		case ')':
			out.WriteByte(']')
		default:
			if rest := s[i:]; strings.HasPrefix(rest, "True") {
				out.WriteString("true")
				i += 3
			} else if strings.HasPrefix(rest, "False") {
				out.WriteString("false")
				i += 4
			} else if strings.HasPrefix(rest, "None") {
				out.WriteString("null")
				i += 3
			} else {
				out.WriteByte(c)
			}
		}
	}
	if quote != 0 {
		return "", false
	}
	return out.String(), true
}

// scalarString konvertiert einen materialisierten Wert zurück in Text.
// Pandas-Leerwerte ("nan") zählen als leer.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if strings.EqualFold(strings.TrimSpace(t), "nan") {
			return ""
		}
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// scalarInt liest einen Ganzzahlwert aus einer materialisierten Zelle.
func scalarInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		if f, err := t.Float64(); err == nil && !math.IsNaN(f) {
			return int(f), true
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return int(f), true
		}
	}
	return 0, false
}
