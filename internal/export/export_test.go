package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/catalogsync/internal/storage"
	"gopkg.in/yaml.v3"
)

func testProducts() []storage.Product {
	return []storage.Product{
		{ID: 7, Name: "Гирлянда LED", Price: "1 299 ₽"},
		{ID: 8, Name: `Ель "Премиум", 2м`, Price: "4 500 ₽"},
		{ID: 9, Name: "<b>Шар</b>", Price: "price not specified"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testProducts()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "no,name,price" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "1" || rows[3][0] != "3" {
		t.Errorf("expected 1-based row numbers, got %q and %q", rows[1][0], rows[3][0])
	}
	if rows[2][1] != `Ель "Премиум", 2м` {
		t.Errorf("expected quoted field round trip, got %q", rows[2][1])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testProducts()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got []storage.Product
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 3 || got[0].ID != 7 {
		t.Errorf("unexpected decoded products %#v", got)
	}

	buf.Reset()
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON(nil): %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected [] for empty catalog, got %q", buf.String())
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, testProducts()); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	var got []storage.Product
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if len(got) != 3 || got[2].Name != "<b>Шар</b>" {
		t.Errorf("unexpected decoded products %#v", got)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	summary := Summary{
		Products:    testProducts(),
		Count:       3,
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Generated: 2026-01-02 03:04:05", "Products:  3", "   1. Гирлянда LED", "   3. <b>Шар</b>"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteHTML_Escapes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, Summary{Products: testProducts(), Count: 3}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<b>Шар</b>") {
		t.Errorf("expected product name to be escaped")
	}
	if !strings.Contains(out, "&lt;b&gt;Шар&lt;/b&gt;") {
		t.Errorf("expected escaped product name in output")
	}
}

func TestWrite_Dispatch(t *testing.T) {
	for _, format := range Formats {
		var buf bytes.Buffer
		if err := Write(&buf, format, testProducts()); err != nil {
			t.Errorf("Write(%s): %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Write(%s): empty output", format)
		}
	}

	if err := Write(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestRecords(t *testing.T) {
	got := Records([]storage.Record{{Name: "a", Price: "1"}, {Name: "b", Price: "2"}})
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 || got[1].Name != "b" {
		t.Errorf("unexpected products %#v", got)
	}
}
