package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sample(t *testing.T) *Catalog {
	t.Helper()
	c, err := FromTable([]string{" Item ", "PRICE"}, [][]string{
		{"Coffee", "2.50"},
		{"tea", "1"},
		{" Samosa", "1.20"},
	})
	if err != nil {
		t.Fatalf("from table: %v", err)
	}
	return c
}

func TestMatch(t *testing.T) {
	c := sample(t)
	tests := []struct {
		name   string
		phrase string
		want   string
		ok     bool
	}{
		{"exact", "coffee", "coffee", true},
		{"case and space", "  Samosa ", "samosa", true},
		{"misspelled", "cofee", "coffee", true},
		{"far off", "pizza", "", false},
		{"empty", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := c.Match(tt.phrase, DefaultCutoff)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Match(%q) = %q,%v want %q,%v", tt.phrase, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatchTieBreaksLexicographically(t *testing.T) {
	c, err := New([]Entry{
		{Name: "cat", Price: decimal.NewFromInt(1)},
		{Name: "bat", Price: decimal.NewFromInt(2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, price, ok := c.Match("hat", DefaultCutoff)
	if !ok || got != "bat" {
		t.Fatalf("expected bat, got %q ok=%v", got, ok)
	}
	if !price.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestMatchPrefersExactKey(t *testing.T) {
	tests := []struct {
		name   string
		items  []string
		phrase string
		want   string
		ok     bool
	}{
		{"exact beats near neighbour", []string{"teas", "tea"}, "tea", "tea", true},
		{"exact plural", []string{"teas", "tea"}, "teas", "teas", true},
		{"no similar key", []string{"coffee", "tea"}, "xyzxyz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]Entry, len(tt.items))
			for i, name := range tt.items {
				entries[i] = Entry{Name: name, Price: decimal.NewFromInt(int64(i + 1))}
			}
			c, err := New(entries)
			if err != nil {
				t.Fatal(err)
			}
			got, _, ok := c.Match(tt.phrase, DefaultCutoff)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Match(%q) = %q,%v want %q,%v", tt.phrase, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNilCatalogNeverMatches(t *testing.T) {
	var c *Catalog
	if _, _, ok := c.Match("coffee", DefaultCutoff); ok {
		t.Fatal("nil catalog should not match")
	}
	if c.Len() != 0 {
		t.Fatal("nil catalog should be empty")
	}
}

func TestFromTableErrors(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		rows   [][]string
		want   error
	}{
		{"missing price", []string{"item", "cost"}, [][]string{{"tea", "1"}}, ErrMissingColumns},
		{"duplicate", []string{"item", "price"}, [][]string{{"Tea", "1"}, {"tea ", "2"}}, ErrDuplicateItem},
		{"no rows", []string{"item", "price"}, nil, ErrEmptyCatalog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromTable(tt.header, tt.rows)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := FromTable([]string{"item", "price"}, [][]string{{"tea", "abc"}}); err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected row error, got %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	c, err := Read("prices.CSV", strings.NewReader("Item,Price\nCoffee,2.50\nTea,1.00\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", c.Len())
	}
	p, ok := c.Price("coffee")
	if !ok || !p.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected coffee price %s", p)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Item")
	_ = f.SetCellValue(sheet, "B1", "Price")
	_ = f.SetCellValue(sheet, "A2", "Vada Pav")
	_ = f.SetCellValue(sheet, "B2", "15")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	_ = f.Close()

	c, err := Read("menu.xlsx", buf)
	if err != nil {
		t.Fatalf("read xlsx: %v", err)
	}
	if _, ok := c.Price("vada pav"); !ok {
		t.Fatalf("expected vada pav in catalog, got %v", c.Entries())
	}
}

func TestReadXLSXFormattedPrice(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Item")
	_ = f.SetCellValue(sheet, "B1", "Price")
	_ = f.SetCellValue(sheet, "A2", "Coffee")
	_ = f.SetCellValue(sheet, "B2", 1200.5)
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	if err := f.SetCellStyle(sheet, "B2", "B2", style); err != nil {
		t.Fatalf("set style: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	_ = f.Close()

	c, err := ReadXLSX(buf)
	if err != nil {
		t.Fatalf("read xlsx: %v", err)
	}
	p, ok := c.Price("coffee")
	if !ok || !p.Equal(decimal.RequireFromString("1200.5")) {
		t.Fatalf("unexpected coffee price %s ok=%v", p, ok)
	}
}

func TestReadUnsupported(t *testing.T) {
	if _, err := Read("menu.txt", strings.NewReader("")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestStorePublish(t *testing.T) {
	var s Store
	if s.Loaded() {
		t.Fatal("store should start empty")
	}
	c := sample(t)
	s.Publish(c)
	if s.Load() != c {
		t.Fatal("expected published catalog")
	}
}
