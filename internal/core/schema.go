package core

import (
	"fmt"
	"strings"
)

// Column names used by the two accepted export layouts.
const (
	ColIDProduct    = "idProduct"
	ColIDLanguage   = "idLanguage"
	ColIsFoil       = "isFoil"
	ColGroupCount   = "groupCount"
	ColPrice        = "price"
	ColIsAltered    = "isAltered"
	ColCondition    = "condition"
	ColProductID    = "Product ID"
	ColArticle      = "Article"
	ColExpansion    = "Expansion"
	ColCategory     = "Category"
	ColAmount       = "Amount"
	ColArticleValue = "Article Value"
)

// SingleCardCategory is the text-based export category for individual cards.
const SingleCardCategory = "Magic Single"

var textBasedRequired = []string{ColProductID, ColArticle, ColExpansion}

// SchemaError reports a header that matches neither export layout.
type SchemaError struct {
	Header []string
}

func (e *SchemaError) Error() string {
	return "invalid file format: " + schemaRequirement
}

// Lines returns the user-facing explanation, one sentence per line.
func (e *SchemaError) Lines() []string {
	return []string{
		"Invalid file format.",
		schemaRequirementSentence,
		"Are you sure this is a CardMarket CSV file?",
	}
}

const schemaRequirement = `header must contain "idProduct", or all of "Product ID", "Article" and "Expansion"`

const schemaRequirementSentence = `The file must include either an "idProduct" column header or all three of the following column headers: "Product ID", "Article", and "Expansion".`

// DetectSchema picks the export layout from a header row. When a header
// carries both column sets the text-based layout wins, since its rows hold
// more information for fallback lookups.
func DetectSchema(header []string) (SchemaVariant, error) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	textBased := true
	for _, col := range textBasedRequired {
		if !present[col] {
			textBased = false
			break
		}
	}
	switch {
	case textBased:
		return SchemaTextBased, nil
	case present[ColIDProduct]:
		return SchemaIDBased, nil
	default:
		return SchemaUnknown, &SchemaError{Header: append([]string(nil), header...)}
	}
}

// InputError reports an export that could not be read or parsed.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("read input: %v", e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
