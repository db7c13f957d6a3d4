package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Paper repräsentiert eine wissenschaftliche Publikation aus dem Bulk-Dump.
// Die Zeilen werden einmalig per Ingestion angelegt und danach nicht mehr verändert.
type Paper struct {
	// Quell-ID aus dem Dump (nicht generiert)
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"created_at"`

	Title    string `json:"title,omitempty"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	Year     *int   `json:"year,omitempty" gorm:"index"`

	// Container-Felder, als JSON gespeichert (Struktur siehe Author/VenueInfo)
	Authors    datatypes.JSON `json:"authors,omitempty"`
	Venue      datatypes.JSON `json:"venue,omitempty"`
	Keywords   datatypes.JSON `json:"keywords,omitempty"`
	Fos        datatypes.JSON `json:"fos,omitempty"`
	References datatypes.JSON `json:"references,omitempty"`
	URLs       datatypes.JSON `json:"url,omitempty" gorm:"column:url"`

	NCitation int `json:"n_citation" gorm:"column:n_citation;index;default:0"`

	PageStart string `json:"page_start,omitempty"`
	PageEnd   string `json:"page_end,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Issue     string `json:"issue,omitempty"`
	ISSN      string `json:"issn,omitempty" gorm:"column:issn"`
	ISBN      string `json:"isbn,omitempty" gorm:"column:isbn"`
	DOI       string `json:"doi,omitempty" gorm:"column:doi"`
	PDF       string `json:"pdf,omitempty" gorm:"column:pdf"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}

// Author ist ein Eintrag im Authors-Container. Einträge ohne ID werden
// bereits vom Normalizer verworfen und erreichen die Datenbank nicht.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// VenueInfo beschreibt den Publikationsort. Ein Venue ohne ID gilt als
// fehlerhaft und wird vom Normalizer komplett entfernt.
type VenueInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// AuthorList dekodiert das Authors-Feld. Ein leerer oder fehlender
// Container ergibt eine leere Liste, nie einen Fehler.
func (p *Paper) AuthorList() []Author {
	if len(p.Authors) == 0 {
		return nil
	}
	var authors []Author
	if err := json.Unmarshal(p.Authors, &authors); err != nil {
		return nil
	}
	return authors
}

// VenueRecord dekodiert das Venue-Feld. Das zweite Ergebnis ist false,
// wenn kein Venue gespeichert ist.
func (p *Paper) VenueRecord() (VenueInfo, bool) {
	if len(p.Venue) == 0 {
		return VenueInfo{}, false
	}
	var v VenueInfo
	if err := json.Unmarshal(p.Venue, &v); err != nil {
		return VenueInfo{}, false
	}
	return v, true
}

// ReferenceIDs dekodiert die referenzierten Paper-IDs. Die IDs sind
// unaufgelöst, referentielle Integrität wird nicht erzwungen.
func (p *Paper) ReferenceIDs() []string {
	if len(p.References) == 0 {
		return nil
	}
	var raw []json.Number
	if err := json.Unmarshal(p.References, &raw); err != nil {
		// Fallback: manche Dumps führen Referenzen als Strings
		var s []string
		if err := json.Unmarshal(p.References, &s); err != nil {
			return nil
		}
		return s
	}
	ids := make([]string, 0, len(raw))
	for _, n := range raw {
		ids = append(ids, n.String())
	}
	return ids
}

// FirstURL liefert die erste gespeicherte URL oder einen leeren String.
func (p *Paper) FirstURL() string {
	if len(p.URLs) == 0 {
		return ""
	}
	var urls []string
	if err := json.Unmarshal(p.URLs, &urls); err != nil {
		return ""
	}
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
