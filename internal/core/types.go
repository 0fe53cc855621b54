package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RawRow maps column names to cell values for one parsed export row.
type RawRow map[string]string

// Get returns the trimmed value of column name, or "" if absent.
func (r RawRow) Get(name string) string {
	return strings.TrimSpace(r[name])
}

// Table is a parsed export: the header row plus one RawRow per data row.
type Table struct {
	Header []string
	Rows   []RawRow
}

// SchemaVariant identifies which of the accepted export layouts a table uses.
type SchemaVariant int

const (
	SchemaUnknown SchemaVariant = iota
	SchemaIDBased               // idProduct, idLanguage, isFoil, groupCount, price ...
	SchemaTextBased             // Product ID, Article, Expansion, Category, Amount ...
)

func (v SchemaVariant) String() string {
	switch v {
	case SchemaIDBased:
		return "id-based"
	case SchemaTextBased:
		return "text-based"
	default:
		return "unknown"
	}
}

// NormalizedQuery is the lookup-ready form of a RawRow.
type NormalizedQuery struct {
	MarketplaceID string
	ExpansionCode string
	ArticleText   string
	IsTokenQuery  bool
	LanguageCode  string
	FoilFlag      bool
	ConditionCode string
	Quantity      string
	UnitPrice     string
	Altered       bool

	// Category is the raw export category ("" when the column is absent).
	Category string
	// FallbackEligible is set when the raw row carried both an article and an
	// expansion, which is what the structured search needs.
	FallbackEligible bool
	// Described is set when the raw row carried any article or expansion text.
	Described bool
}

// SearchQuery is the structured fallback lookup derived from a NormalizedQuery.
func (q NormalizedQuery) SearchQuery() SearchQuery {
	return SearchQuery{
		SetCode: q.ExpansionCode,
		Text:    strings.TrimSpace(q.ArticleText),
		Token:   q.IsTokenQuery,
	}
}

// SearchQuery is a set-code plus free-text card search.
type SearchQuery struct {
	SetCode string
	Text    string
	Token   bool
}

// CanonicalCard is the card service's representation of a printing.
type CanonicalCard struct {
	Name              string
	SetCode           string
	CollectorNumber   string
	AvailableFinishes []string
	ScryfallURI       string
}

// HasFinish reports whether the printing exists in the given finish.
func (c CanonicalCard) HasFinish(finish string) bool {
	for _, f := range c.AvailableFinishes {
		if f == finish {
			return true
		}
	}
	return false
}

// ErrNotFound is returned (possibly wrapped) by a CardSource when the service
// has no card for the request. It is an expected outcome, not a failure.
var ErrNotFound = errors.New("card not found")

// CardSource is the external card lookup service.
type CardSource interface {
	LookupByMarketplaceID(ctx context.Context, id string) (CanonicalCard, error)
	Search(ctx context.Context, q SearchQuery) ([]CanonicalCard, error)
}

// OutputColumns is the fixed header of the converted inventory.
var OutputColumns = []string{
	"Count", "Name", "Edition", "Language", "Foil",
	"CollectorNumber", "Alter", "Condition", "PurchasePrice",
}

// OutputRecord is one row of the converted inventory.
type OutputRecord struct {
	Count           string `json:"Count"`
	Name            string `json:"Name"`
	Edition         string `json:"Edition"`
	Language        string `json:"Language"`
	Foil            string `json:"Foil"`
	CollectorNumber string `json:"CollectorNumber"`
	Alter           string `json:"Alter"`
	Condition       string `json:"Condition"`
	PurchasePrice   string `json:"PurchasePrice"`
}

// Values returns the record's cells in OutputColumns order.
func (r OutputRecord) Values() []string {
	return []string{
		r.Count, r.Name, r.Edition, r.Language, r.Foil,
		r.CollectorNumber, r.Alter, r.Condition, r.PurchasePrice,
	}
}

// UnknownIDMessage is the diagnostic text for ids the card service does not know.
const UnknownIDMessage = "Scryfall is missing this CardMarket ID."

// MissingEntry is a diagnostic for a row that could not be confidently resolved.
//
// URI set: a fallback match exists but is unconfirmed.
// Expansion set, URI empty: nothing matched; Name/Expansion show the query.
// Both empty: the marketplace id is unknown to the card service.
type MissingEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Expansion string `json:"expansion"`
	URI       string `json:"uri"`
}

// LowConfidence reports whether the entry points at an unconfirmed match.
func (e MissingEntry) LowConfidence() bool { return e.URI != "" }

// Describe renders the entry as a one-line note for a human reviewer.
func (e MissingEntry) Describe() string {
	switch {
	case e.URI != "":
		return "This is likely " + e.Name + ". You should double-check the printing. " + e.URI
	case e.Expansion != "":
		return "This may be " + e.Name + " from " + e.Expansion + ", but I cannot be sure."
	default:
		return e.Name
	}
}

// ErrorKind classifies batch-level failures.
type ErrorKind string

const (
	KindInputRead     ErrorKind = "input_read_failure"
	KindInvalidSchema ErrorKind = "invalid_schema"
	KindServiceFatal  ErrorKind = "service_fatal"
)

// ErrorInfo describes why a run failed.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Lines   []string  `json:"lines,omitempty"`
}

// Stats counts how each input row was disposed of.
type Stats struct {
	Rows     int `json:"rows"`
	High     int `json:"high"`
	Low      int `json:"low"`
	Missing  int `json:"missing"`
	Excluded int `json:"excluded"`
	Dropped  int `json:"dropped"`
}

// BatchResult is the published outcome of one run.
type BatchResult struct {
	Variant    string         `json:"variant,omitempty"`
	Records    []OutputRecord `json:"records"`
	Missing    []MissingEntry `json:"missing"`
	Stats      Stats          `json:"stats"`
	FatalError *ErrorInfo     `json:"fatal_error,omitempty"`
}

// MissingIDs returns the marketplace ids of all diagnostics, one per line.
func (r BatchResult) MissingIDs() string {
	ids := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		ids[i] = m.ID
	}
	return strings.Join(ids, "\n")
}

// RunRecord is a finished run as kept in history.
type RunRecord struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	FileName   string         `json:"file_name"`
	State      State          `json:"state"`
	Variant    string         `json:"variant,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stats      Stats          `json:"stats"`
	Records    []OutputRecord `json:"records"`
	Missing    []MissingEntry `json:"missing"`
	Error      *ErrorInfo     `json:"error,omitempty"`
}

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns the newest runs first. An empty sessionID lists all
	// sessions.
	ListRuns(ctx context.Context, sessionID string, limit int) ([]RunRecord, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ErrRunNotFound is returned by a RunStore for unknown run ids.
var ErrRunNotFound = errors.New("run not found")
