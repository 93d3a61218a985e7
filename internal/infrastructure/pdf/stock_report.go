// Package pdf genera el reporte de existencias por organización.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + organización │ Fecha de cálculo            │
//	│  RESUMEN: conteo por estado (sin stock / negativo / bajo)    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: SKU | Producto | Ubicaciones | Stock | Estado        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: aviso de datos desactualizados si aplica            │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 180, Green: 30, Blue: 30}
	colorAmber   = &props.Color{Red: 190, Green: 120, Blue: 0}
)

// statusLabels etiqueta legible de cada estado en el reporte.
var statusLabels = map[string]string{
	"out of stock":   "Sin stock",
	"negative stock": "Negativo",
	"low stock":      "Bajo",
	"in stock":       "Disponible",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// StockReportGenerator genera el PDF de existencias con Maroto v2.
type StockReportGenerator struct{}

// NewStockReportGenerator construye el generador.
func NewStockReportGenerator() *StockReportGenerator { return &StockReportGenerator{} }

// Render genera el PDF y devuelve sus bytes.
func (g *StockReportGenerator) Render(_ context.Context, report *dto.StockReportDTO) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("pdf: reporte vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Reporte de existencias", true).
		WithAuthor("stock-ledger", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableRows(report.Items)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(report))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(r *dto.StockReportDTO) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("REPORTE DE EXISTENCIAS", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Organización: "+r.OrganizationID, props.Text{
				Size: 8, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("Calculado: "+r.ComputedAt.Format("02/01/2006 15:04 MST"), props.Text{
				Size: 8, Align: align.Right, Top: 2,
			}),
			text.New("Generado: "+r.GeneratedAt.Format("02/01/2006 15:04 MST"), props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

func summaryRow(r *dto.StockReportDTO) core.Row {
	cell := func(status string) core.Col {
		return col.New(3).Add(
			text.New(statusLabels[status], props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 1, Color: statusColor(status),
			}),
			text.New(strconv.Itoa(r.StatusCounts[status]), props.Text{
				Size: 11, Align: align.Center, Top: 6,
			}),
		)
	}
	return row.New(14).Add(
		cell("out of stock"),
		cell("negative stock"),
		cell("low stock"),
		cell("in stock"),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("SKU", 2, align.Left),
		h("Producto", 5, align.Left),
		h("Ubic.", 1, align.Center),
		h("Stock", 2, align.Right),
		h("Estado", 2, align.Center),
	)
}

func tableRows(items []dto.ProductStockDTO) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(it.SKU, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(5).Add(text.New(it.ProductName, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(strconv.Itoa(it.LocationsWithStock), props.Text{
				Size: 8, Align: align.Center, Top: 1,
			})),
			col.New(2).Add(text.New(formatQty(it.CurrentStock), props.Text{
				Size: 8, Align: align.Right, Top: 1, Right: 1,
			})),
			col.New(2).Add(text.New(statusLabels[it.StockStatus], props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 1, Color: statusColor(it.StockStatus),
			})),
		))
	}
	return result
}

func footerRow(r *dto.StockReportDTO) core.Row {
	msg := fmt.Sprintf("Stock derivado del ledger de operaciones. Umbral de stock bajo: %d unidades.", r.LowThreshold)
	if r.Stale {
		msg += " ATENCIÓN: el cálculo está desactualizado."
	}
	return row.New(8).Add(col.New(12).Add(
		text.New(msg, props.Text{Size: 7, Color: colorGray, Top: 2}),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func statusColor(status string) *props.Color {
	switch status {
	case "out of stock", "negative stock":
		return colorRed
	case "low stock":
		return colorAmber
	default:
		return colorPrimary
	}
}

// formatQty inserta puntos de miles conservando el signo.
// Ej: 25000 → "25.000", -1500 → "-1.500"
func formatQty(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	buf := make([]byte, 0, len(s)+len(s)/3)
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return sign + string(buf)
}
