package core

import (
	"regexp"
	"strings"
)

// languageNames maps export language codes to collection-manager names.
var languageNames = map[string]string{
	"1":  "English",
	"2":  "French",
	"3":  "German",
	"4":  "Spanish",
	"5":  "Italian",
	"6":  "Simplified Chinese",
	"7":  "Japanese",
	"8":  "Portuguese",
	"9":  "Russian",
	"10": "Korean",
	"11": "Traditional Chinese",
}

// conditionNames maps export grading codes to collection-manager grades.
var conditionNames = map[string]string{
	"MT": "M",
	"NM": "NM",
	"EX": "LP",
	"GD": "MP",
	"LP": "MP",
	"PL": "HP",
	"PO": "D",
}

// setCodeOverrides maps expansion names the card service files under a
// different set.
var setCodeOverrides = map[string]string{
	"Mystery Booster":              "PLST",
	"The List":                     "PLST",
	"30th Anniversary Celebration": "P30A",
}

const defaultCondition = "NM"

var parenthesized = regexp.MustCompile(`\(.*\)`)

// LanguageName returns the language for an export code, or "" if unknown.
func LanguageName(code string) string {
	return languageNames[strings.TrimSpace(code)]
}

// ConditionName returns the grade for an export condition code. Unknown codes
// are graded NM.
func ConditionName(code string) string {
	if name, ok := conditionNames[strings.TrimSpace(code)]; ok {
		return name
	}
	return defaultCondition
}

// FoilFinish returns the finish column value for a printing.
func FoilFinish(foil bool, card CanonicalCard) string {
	if !foil {
		return ""
	}
	if card.HasFinish("etched") && !card.HasFinish("foil") {
		return "etched"
	}
	return "foil"
}

// NormalizeExpansion maps an export expansion name to the card service's
// vocabulary.
func NormalizeExpansion(expansion string) string {
	expansion = strings.TrimSuffix(expansion, ": Extras")

	if code, ok := setCodeOverrides[expansion]; ok {
		expansion = code
	}

	if i := strings.Index(expansion, "Commander:"); i >= 0 {
		rest := strings.TrimLeft(expansion[i+len("Commander:"):], " ")
		expansion = expansion[:i] + rest
	}

	if strings.HasSuffix(expansion, ": Promos") {
		expansion = strings.TrimSuffix(expansion, ": Promos") + " Promos"
	}
	return expansion
}

// NormalizeArticle strips printing annotations from an article title and
// detects token articles. For tokens the expansion gains a " Tokens" suffix.
func NormalizeArticle(article, expansion string) (text, exp string, token bool) {
	if loc := parenthesized.FindStringIndex(article); loc != nil {
		article = article[:loc[0]] + article[loc[1]:]
	}
	if i := strings.Index(article, "Token"); i >= 0 {
		return article[:i], expansion + " Tokens", true
	}
	return article, expansion, false
}

// Excluded reports whether a row is outside the conversion entirely.
// Only text-based exports carry a category; anything but single cards
// (sealed product, accessories) is skipped.
func Excluded(row RawRow, variant SchemaVariant) bool {
	if variant != SchemaTextBased {
		return false
	}
	category := row.Get(ColCategory)
	return category != "" && category != SingleCardCategory
}

// Normalize derives the lookup query for a row. ok is false when the row is
// excluded from the conversion.
func Normalize(row RawRow, variant SchemaVariant) (q NormalizedQuery, ok bool) {
	if Excluded(row, variant) {
		return NormalizedQuery{}, false
	}

	rawArticle := row.Get(ColArticle)
	rawExpansion := row.Get(ColExpansion)

	text, expansion, token := NormalizeArticle(rawArticle, NormalizeExpansion(rawExpansion))

	return NormalizedQuery{
		MarketplaceID:    firstNonEmpty(row.Get(ColProductID), row.Get(ColIDProduct)),
		ExpansionCode:    expansion,
		ArticleText:      text,
		IsTokenQuery:     token,
		LanguageCode:     row.Get(ColIDLanguage),
		FoilFlag:         row.Get(ColIsFoil) == "1",
		ConditionCode:    row.Get(ColCondition),
		Quantity:         firstNonEmpty(row.Get(ColGroupCount), row.Get(ColAmount)),
		UnitPrice:        firstNonEmpty(row.Get(ColPrice), row.Get(ColArticleValue)),
		Altered:          row.Get(ColIsAltered) == "true",
		Category:         row.Get(ColCategory),
		FallbackEligible: rawArticle != "" && rawExpansion != "",
		Described:        rawArticle != "" || rawExpansion != "",
	}, true
}

// Materialize builds the output row for a query resolved to card.
func Materialize(q NormalizedQuery, card CanonicalCard) OutputRecord {
	alter := "FALSE"
	if q.Altered {
		alter = "TRUE"
	}
	return OutputRecord{
		Count:           q.Quantity,
		Name:            card.Name,
		Edition:         card.SetCode,
		Language:        LanguageName(q.LanguageCode),
		Foil:            FoilFinish(q.FoilFlag, card),
		CollectorNumber: card.CollectorNumber,
		Alter:           alter,
		Condition:       ConditionName(q.ConditionCode),
		PurchasePrice:   q.UnitPrice,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
