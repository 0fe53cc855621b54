package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		wantHeader []string
		wantRows   int
		check      func(t *testing.T, tbl Table)
	}{
		{
			name:       "comma separated",
			input:      []byte("idProduct,groupCount,price\n1,2,0.5\n3,1,1.0\n"),
			wantHeader: []string{"idProduct", "groupCount", "price"},
			wantRows:   2,
			check: func(t *testing.T, tbl Table) {
				if got := tbl.Rows[1].Get("idProduct"); got != "3" {
					t.Errorf("row 2 idProduct = %q, want %q", got, "3")
				}
			},
		},
		{
			name:       "semicolon separated with BOM",
			input:      append([]byte{0xEF, 0xBB, 0xBF}, []byte("idProduct;price\n10;2,50\n")...),
			wantHeader: []string{"idProduct", "price"},
			wantRows:   1,
			check: func(t *testing.T, tbl Table) {
				if got := tbl.Rows[0].Get("price"); got != "2,50" {
					t.Errorf("price = %q, want %q", got, "2,50")
				}
			},
		},
		{
			name:       "blank rows skipped",
			input:      []byte("idProduct\n1\n\n,\n2\n"),
			wantHeader: []string{"idProduct"},
			wantRows:   2,
		},
		{
			name:       "ragged rows tolerated",
			input:      []byte("Product ID,Article,Expansion\n1,Bolt\n2,Shock,M19,extra\n"),
			wantHeader: []string{"Product ID", "Article", "Expansion"},
			wantRows:   2,
			check: func(t *testing.T, tbl Table) {
				if got := tbl.Rows[0].Get("Expansion"); got != "" {
					t.Errorf("short row Expansion = %q, want empty", got)
				}
				if got := tbl.Rows[1].Get("Expansion"); got != "M19" {
					t.Errorf("long row Expansion = %q, want %q", got, "M19")
				}
			},
		},
		{
			name:       "utf-8 passes through",
			input:      []byte("Product ID,Article,Expansion\n1,Jötun Grunt,Coldsnap\n"),
			wantHeader: []string{"Product ID", "Article", "Expansion"},
			wantRows:   1,
		},
		{
			name:       "windows-1252 decoded",
			input:      []byte("Product ID,Article,Expansion\n1,J\xf6tun Grunt,Coldsnap\n"),
			wantHeader: []string{"Product ID", "Article", "Expansion"},
			wantRows:   1,
			check: func(t *testing.T, tbl Table) {
				if got := tbl.Rows[0].Get("Article"); got != "Jötun Grunt" {
					t.Errorf("Article = %q, want %q", got, "Jötun Grunt")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ParseTable(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseTable() error = %v", err)
			}
			if strings.Join(tbl.Header, "|") != strings.Join(tt.wantHeader, "|") {
				t.Errorf("Header = %v, want %v", tbl.Header, tt.wantHeader)
			}
			if len(tbl.Rows) != tt.wantRows {
				t.Fatalf("got %d rows, want %d", len(tbl.Rows), tt.wantRows)
			}
			if tt.check != nil {
				tt.check(t, tbl)
			}
		})
	}
}

func TestParseTable_Empty(t *testing.T) {
	_, err := ParseTable(strings.NewReader(""))
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("ParseTable(\"\") error = %v, want ErrEmptyInput", err)
	}
}

func TestWriteRecords(t *testing.T) {
	records := []OutputRecord{
		{Count: "1", Name: "Fire // Ice", Edition: "mh2", Language: "English", CollectorNumber: "290", Alter: "FALSE", Condition: "NM", PurchasePrice: "0.30"},
		{Count: "2", Name: "Card, With Comma", Edition: "lea", Foil: "foil", Alter: "TRUE", Condition: "LP"},
	}

	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}

	want := "Count,Name,Edition,Language,Foil,CollectorNumber,Alter,Condition,PurchasePrice\n" +
		"1,Fire // Ice,mh2,English,,290,FALSE,NM,0.30\n" +
		"2,\"Card, With Comma\",lea,,foil,,TRUE,LP,\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteRecords() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteRecords_RoundTripThroughParser(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecords(&buf, nil); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}
	tbl, err := ParseTable(&buf)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if strings.Join(tbl.Header, ",") != strings.Join(OutputColumns, ",") {
		t.Errorf("Header = %v, want %v", tbl.Header, OutputColumns)
	}
	if len(tbl.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(tbl.Rows))
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Lightning Bolt ", "Lightning Bolt"},
		{`="265882"`, "265882"},
		{`"Ach! Hans, Run!"`, `"Ach! Hans, Run!"`},
		{`="`, `="`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanCell(tt.in); got != tt.want {
			t.Errorf("cleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTable_FormulaWrappedIDs(t *testing.T) {
	tbl, err := ParseTable(strings.NewReader("idProduct,groupCount\n\"=\"\"265882\"\"\",1\n"))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if got := tbl.Rows[0].Get("idProduct"); got != "265882" {
		t.Errorf("idProduct = %q, want %q", got, "265882")
	}
}
