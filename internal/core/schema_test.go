package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectSchema(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		want    SchemaVariant
		wantErr bool
	}{
		{"id-based", []string{"idProduct", "groupCount", "price"}, SchemaIDBased, false},
		{"text-based", []string{"Product ID", "Article", "Expansion", "Category"}, SchemaTextBased, false},
		{"padded header", []string{" Product ID ", "Article", "Expansion"}, SchemaTextBased, false},
		{"both layouts prefer text", []string{"idProduct", "Product ID", "Article", "Expansion"}, SchemaTextBased, false},
		{"partial text-based", []string{"Product ID", "Article"}, SchemaUnknown, true},
		{"partial text-based with id", []string{"idProduct", "Article"}, SchemaIDBased, false},
		{"unrelated", []string{"Name", "Qty"}, SchemaUnknown, true},
		{"empty", nil, SchemaUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectSchema(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectSchema() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchemaError_Lines(t *testing.T) {
	_, err := DetectSchema([]string{"foo"})

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %T", err)
	}

	lines := schemaErr.Lines()
	if len(lines) != 3 {
		t.Fatalf("Lines() returned %d lines, want 3", len(lines))
	}
	for _, col := range []string{`"idProduct"`, `"Product ID"`, `"Article"`, `"Expansion"`} {
		if !strings.Contains(lines[1], col) {
			t.Errorf("requirement line should name %s: %q", col, lines[1])
		}
	}
	if !strings.Contains(err.Error(), "idProduct") {
		t.Errorf("Error() should name the requirement: %q", err.Error())
	}
}
