// seed genera un script SQL que carga el catálogo de una organización (productos y ubicaciones)
// a partir de un CSV exportado desde la hoja de cálculo del cliente.
//
// Uso: go run ./cmd/seed -org <uuid> [-latin1] [-locations "Bodega Norte;Almacén Centro"] catalogo.csv
// Columnas esperadas (separador ';'): sku;nombre;codigo;precio
// Escribe el SQL en stdout. Los IDs se derivan de la organización y el SKU, así que
// ejecutar el script dos veces actualiza en lugar de duplicar.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type product struct {
	sku, name, code string
	price           decimal.Decimal
}

func main() {
	org := flag.String("org", "", "UUID de la organización")
	latin1 := flag.Bool("latin1", false, "el CSV viene en ISO-8859-1 (exportación de Excel)")
	locations := flag.String("locations", "Bodega Principal", "ubicaciones separadas por ';'")
	flag.Parse()

	orgID, err := uuid.Parse(*org)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-org inválido: %v\n", err)
		os.Exit(2)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "uso: seed -org <uuid> catalogo.csv")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var r io.Reader = f
	if *latin1 {
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	products, err := readCatalog(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer catálogo: %v\n", err)
		os.Exit(1)
	}

	if err := writeSQL(os.Stdout, orgID, products, splitNames(*locations)); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Generado: %d productos para %s\n", len(products), orgID)
}

func readCatalog(r io.Reader) ([]product, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []product
	seen := map[string]bool{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "sku") {
			continue // encabezado
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("línea %d: se esperan al menos sku y nombre", line)
		}
		p := product{sku: strings.TrimSpace(rec[0]), name: strings.TrimSpace(rec[1])}
		if p.sku == "" || p.name == "" {
			return nil, fmt.Errorf("línea %d: sku y nombre son obligatorios", line)
		}
		if seen[p.sku] {
			return nil, fmt.Errorf("línea %d: sku repetido %q", line, p.sku)
		}
		seen[p.sku] = true
		if len(rec) > 2 {
			p.code = strings.TrimSpace(rec[2])
		}
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			// Excel en español usa coma decimal.
			raw := strings.ReplaceAll(strings.TrimSpace(rec[3]), ",", ".")
			if p.price, err = decimal.NewFromString(raw); err != nil {
				return nil, fmt.Errorf("línea %d: precio inválido %q", line, rec[3])
			}
		}
		out = append(out, p)
	}
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ";") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func writeSQL(w io.Writer, orgID uuid.UUID, products []product, locations []string) error {
	var b strings.Builder
	b.WriteString("-- Catálogo inicial generado por cmd/seed\n")
	fmt.Fprintf(&b, "-- Organización %s\n\nBEGIN;\n\n", orgID)

	b.WriteString("-- 1. Ubicaciones\n")
	for _, name := range locations {
		id := uuid.NewSHA1(orgID, []byte("location:"+name))
		fmt.Fprintf(&b, "INSERT INTO locations (id, organization_id, name) VALUES ('%s', '%s', '%s')\n",
			id, orgID, escapeSQL(name))
		b.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;\n")
	}

	b.WriteString("\n-- 2. Productos\n")
	for _, p := range products {
		id := uuid.NewSHA1(orgID, []byte("product:"+p.sku))
		fmt.Fprintf(&b, "INSERT INTO products (id, organization_id, name, sku, code, price) VALUES ('%s', '%s', '%s', '%s', '%s', %s)\n",
			id, orgID, escapeSQL(p.name), escapeSQL(p.sku), escapeSQL(p.code), p.price.StringFixed(2))
		b.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code, price = EXCLUDED.price, updated_at = now();\n")
	}
	b.WriteString("\nCOMMIT;\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
