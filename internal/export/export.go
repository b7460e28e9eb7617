package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/FranksOps/catalogsync/internal/storage"
	"gopkg.in/yaml.v3"
)

// Formats lists the names accepted by Write.
var Formats = []string{"csv", "json", "yaml", "text", "html"}

// Summary wraps a catalog snapshot for the text and HTML renderings.
type Summary struct {
	Products    []storage.Product
	Count       int
	GeneratedAt time.Time
}

// Write renders products in the named format.
func Write(w io.Writer, format string, products []storage.Product) error {
	switch strings.ToLower(format) {
	case "csv":
		return WriteCSV(w, products)
	case "json", "":
		return WriteJSON(w, products)
	case "yaml", "yml":
		return WriteYAML(w, products)
	case "text", "txt":
		return WriteText(w, newSummary(products))
	case "html":
		return WriteHTML(w, newSummary(products))
	default:
		return fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// ContentType returns the media type for a format accepted by Write.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "yaml", "yml":
		return "application/yaml"
	case "text", "txt":
		return "text/plain; charset=utf-8"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Records numbers freshly scraped records as products, 1-based, for output
// that never went through a store.
func Records(records []storage.Record) []storage.Product {
	products := make([]storage.Product, len(records))
	for i, r := range records {
		products[i] = storage.Product{ID: int64(i + 1), Name: r.Name, Price: r.Price}
	}
	return products
}

func newSummary(products []storage.Product) Summary {
	return Summary{
		Products:    products,
		Count:       len(products),
		GeneratedAt: time.Now(),
	}
}

// WriteCSV writes a "no,name,price" table with 1-based row numbers.
func WriteCSV(w io.Writer, products []storage.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"no", "name", "price"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, p := range products {
		if err := cw.Write([]string{strconv.Itoa(i + 1), p.Name, p.Price}); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes the products as an indented JSON array.
func WriteJSON(w io.Writer, products []storage.Product) error {
	if products == nil {
		products = []storage.Product{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML writes the products as a YAML sequence.
func WriteYAML(w io.Writer, products []storage.Product) error {
	if products == nil {
		products = []storage.Product{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}

// WriteText writes a human-readable listing.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Catalog Snapshot
----------------
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
Products:  {{.Count}}
{{range $i, $p := .Products}}
{{inc $i | printf "%4d"}}. {{$p.Name}}
      {{$p.Price}}
{{- else}}
  None
{{- end}}
`

	t, err := texttemplate.New("textExport").Funcs(texttemplate.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text: %w", err)
	}
	return nil
}

// WriteHTML writes a standalone HTML table of the catalog.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Catalog Snapshot</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Catalog Snapshot</h1>
  <p><strong>Generated:</strong> {{.GeneratedAt.Format "2006-01-02 15:04:05"}} ({{.Count}} products)</p>
  <table>
    <tr><th>ID</th><th>Name</th><th>Price</th></tr>
    {{- range .Products}}
    <tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Price}}</td></tr>
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlExport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
