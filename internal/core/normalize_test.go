package core

import "testing"

func TestNormalizeExpansion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mystery Booster: Extras", "PLST"},
		{"Mystery Booster", "PLST"},
		{"The List", "PLST"},
		{"30th Anniversary Celebration", "P30A"},
		{"Commander: Legends", "Legends"},
		{"Commander:Legends", "Legends"},
		{"Foo: Promos", "Foo Promos"},
		{"Throne of Eldraine: Extras", "Throne of Eldraine"},
		{"Dominaria", "Dominaria"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeExpansion(tt.in); got != tt.want {
				t.Errorf("NormalizeExpansion(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeArticle(t *testing.T) {
	tests := []struct {
		name      string
		article   string
		expansion string
		wantText  string
		wantExp   string
		wantToken bool
	}{
		{"plain", "Lightning Bolt", "Magic 2010", "Lightning Bolt", "Magic 2010", false},
		{"parenthesized", "Card Name (Extended Art)", "Set", "Card Name ", "Set", false},
		{"token with annotation", "Goblin Token (Extended Art)", "Set", "Goblin ", "Set Tokens", true},
		{"token", "Soldier Token", "Dominaria", "Soldier ", "Dominaria Tokens", true},
		{"empty", "", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, exp, token := NormalizeArticle(tt.article, tt.expansion)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if exp != tt.wantExp {
				t.Errorf("expansion = %q, want %q", exp, tt.wantExp)
			}
			if token != tt.wantToken {
				t.Errorf("token = %v, want %v", token, tt.wantToken)
			}
		})
	}
}

func TestConditionName(t *testing.T) {
	tests := map[string]string{
		"MT": "M",
		"NM": "NM",
		"EX": "LP",
		"GD": "MP",
		"LP": "MP",
		"PL": "HP",
		"PO": "D",
		"XX": "NM",
		"":   "NM",
	}
	for code, want := range tests {
		if got := ConditionName(code); got != want {
			t.Errorf("ConditionName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{
		"1":  "English",
		"3":  "German",
		"7":  "Japanese",
		"11": "Traditional Chinese",
		"12": "",
		"":   "",
	}
	for code, want := range tests {
		if got := LanguageName(code); got != want {
			t.Errorf("LanguageName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestFoilFinish(t *testing.T) {
	tests := []struct {
		name     string
		foil     bool
		finishes []string
		want     string
	}{
		{"non-foil", false, []string{"nonfoil", "foil"}, ""},
		{"foil", true, []string{"nonfoil", "foil"}, "foil"},
		{"etched only", true, []string{"etched"}, "etched"},
		{"etched and foil", true, []string{"foil", "etched"}, "foil"},
		{"no finishes", true, nil, "foil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FoilFinish(tt.foil, CanonicalCard{AvailableFinishes: tt.finishes})
			if got != tt.want {
				t.Errorf("FoilFinish() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_IDBased(t *testing.T) {
	row := RawRow{
		ColIDProduct:  "12345",
		ColIDLanguage: "2",
		ColIsFoil:     "1",
		ColGroupCount: "3",
		ColPrice:      "1.50",
		ColIsAltered:  "true",
		ColCondition:  "EX",
	}

	q, ok := Normalize(row, SchemaIDBased)
	if !ok {
		t.Fatal("Normalize() excluded an id-based row")
	}
	if q.MarketplaceID != "12345" {
		t.Errorf("MarketplaceID = %q, want %q", q.MarketplaceID, "12345")
	}
	if !q.FoilFlag || !q.Altered {
		t.Errorf("FoilFlag = %v, Altered = %v, want both true", q.FoilFlag, q.Altered)
	}
	if q.Quantity != "3" || q.UnitPrice != "1.50" {
		t.Errorf("Quantity = %q, UnitPrice = %q", q.Quantity, q.UnitPrice)
	}
	if q.FallbackEligible || q.Described {
		t.Error("id-based row without text should not be fallback eligible")
	}
}

func TestNormalize_TextBased(t *testing.T) {
	row := RawRow{
		ColProductID:    "777",
		ColArticle:      "Goblin Token (Extended Art)",
		ColExpansion:    "Commander: Legends",
		ColCategory:     "Magic Single",
		ColAmount:       "2",
		ColArticleValue: "0.25",
	}

	q, ok := Normalize(row, SchemaTextBased)
	if !ok {
		t.Fatal("Normalize() excluded a single-card row")
	}
	if q.MarketplaceID != "777" {
		t.Errorf("MarketplaceID = %q, want %q", q.MarketplaceID, "777")
	}
	if q.ExpansionCode != "Legends Tokens" {
		t.Errorf("ExpansionCode = %q, want %q", q.ExpansionCode, "Legends Tokens")
	}
	if !q.IsTokenQuery {
		t.Error("IsTokenQuery = false, want true")
	}
	if !q.FallbackEligible {
		t.Error("FallbackEligible = false, want true")
	}

	sq := q.SearchQuery()
	want := SearchQuery{SetCode: "Legends Tokens", Text: "Goblin", Token: true}
	if sq != want {
		t.Errorf("SearchQuery() = %+v, want %+v", sq, want)
	}
}

func TestNormalize_ExcludesNonSingles(t *testing.T) {
	tests := []struct {
		name     string
		category string
		variant  SchemaVariant
		want     bool
	}{
		{"single", "Magic Single", SchemaTextBased, true},
		{"no category", "", SchemaTextBased, true},
		{"sealed", "Magic Booster", SchemaTextBased, false},
		{"id-based ignores category", "Magic Booster", SchemaIDBased, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := RawRow{ColProductID: "1", ColIDProduct: "1", ColArticle: "A", ColExpansion: "B", ColCategory: tt.category}
			if _, ok := Normalize(row, tt.variant); ok != tt.want {
				t.Errorf("Normalize() ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	row := RawRow{ColProductID: "5", ColArticle: "Card (Borderless)", ColExpansion: "Mystery Booster: Extras"}

	first, _ := Normalize(row, SchemaTextBased)
	second, _ := Normalize(row, SchemaTextBased)
	if first != second {
		t.Errorf("Normalize() not deterministic: %+v vs %+v", first, second)
	}

	for _, exp := range []string{"Mystery Booster: Extras", "Commander: Legends", "Foo: Promos", "The List"} {
		once := NormalizeExpansion(exp)
		if twice := NormalizeExpansion(once); twice != once {
			t.Errorf("NormalizeExpansion(%q) not idempotent: %q then %q", exp, once, twice)
		}
	}
}

func TestMaterialize(t *testing.T) {
	q := NormalizedQuery{
		Quantity:      "4",
		UnitPrice:     "0.10",
		LanguageCode:  "1",
		ConditionCode: "GD",
		FoilFlag:      true,
	}
	card := CanonicalCard{
		Name:              "Sol Ring",
		SetCode:           "cmr",
		CollectorNumber:   "472",
		AvailableFinishes: []string{"etched"},
	}

	got := Materialize(q, card)
	want := OutputRecord{
		Count:           "4",
		Name:            "Sol Ring",
		Edition:         "cmr",
		Language:        "English",
		Foil:            "etched",
		CollectorNumber: "472",
		Alter:           "FALSE",
		Condition:       "MP",
		PurchasePrice:   "0.10",
	}
	if got != want {
		t.Errorf("Materialize() = %+v, want %+v", got, want)
	}
}
