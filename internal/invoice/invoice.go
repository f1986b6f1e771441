// Package invoice builds and renders the printable invoice of a sale.
package invoice

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"salesdesk/backend/internal/domain"
)

type Line struct {
	No       int
	Product  string
	Quantity int
	Rate     decimal.Decimal
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
}

type Document struct {
	Number          string
	IssuedAt        time.Time
	StoreName       string
	StoreAddress    string
	ShopName        string
	ShopAddress     string
	ShopPhone       string
	DeliveryMan     string
	SaleType        domain.SaleType
	DiscountPercent decimal.Decimal
	Lines           []Line
	TotalQuantity   int
	TotalGross      decimal.Decimal
	TotalDiscount   decimal.Decimal
	TotalNet        decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Build lays a sale out as invoice lines. The totals row always ties to the
// stored sale total; per-line discounts are rounded independently.
func Build(sale domain.Sale, st domain.Store, shop domain.Shop, loc *time.Location) Document {
	if loc == nil {
		loc = time.UTC
	}
	doc := Document{
		Number:          sale.ID,
		IssuedAt:        sale.SaleTime.In(loc),
		StoreName:       st.Name,
		StoreAddress:    st.Address,
		ShopName:        shop.Name,
		ShopAddress:     shop.Address,
		ShopPhone:       shop.Phone,
		DeliveryMan:     sale.SalesmanName,
		SaleType:        sale.SaleType,
		DiscountPercent: sale.Discount,
		TotalGross:      decimal.Zero,
		TotalNet:        sale.Total,
	}
	for i, item := range sale.Items {
		gross := item.LineTotal().Round(2)
		discount := gross.Mul(sale.Discount).Div(hundred).Round(2)
		name := item.ProductName
		if name == "" {
			name = item.ProductID
		}
		doc.Lines = append(doc.Lines, Line{
			No:       i + 1,
			Product:  name,
			Quantity: item.Quantity,
			Rate:     item.Price,
			Gross:    gross,
			Discount: discount,
			Net:      gross.Sub(discount),
		})
		doc.TotalQuantity += item.Quantity
		doc.TotalGross = doc.TotalGross.Add(gross)
	}
	doc.TotalDiscount = doc.TotalGross.Sub(doc.TotalNet)
	return doc
}

const (
	pageMargin  = 10.0
	rowHeight   = 7.0
	blockWidth  = 70.0
	fontFamily  = "Helvetica"
	dateDisplay = "02 Jan 2006 03:04 PM"
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Sr. No.", 14, "C"},
	{"Product", 56, "L"},
	{"Quantity", 18, "R"},
	{"TP Rate", 24, "R"},
	{"Gross Amount", 26, "R"},
	{"Discount", 24, "R"},
	{"Net Amount", 28, "R"},
}

// Render writes doc as a single A4 PDF page set.
func Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Invoice "+doc.Number, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2*pageMargin

	pdf.SetFont(fontFamily, "B", 20)
	pdf.CellFormat(contentWidth, 10, tr(doc.StoreName), "", 1, "C", false, 0, "")
	pdf.SetFont(fontFamily, "", 12)
	pdf.CellFormat(contentWidth, 6, tr(doc.StoreAddress), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "", 10)
	left := []string{doc.ShopName, doc.ShopAddress, doc.ShopPhone}
	right := []string{
		"Invoice #" + doc.Number,
		"Date: " + doc.IssuedAt.Format(dateDisplay),
		"Delivery Man: " + doc.DeliveryMan,
	}
	for i := range left {
		pdf.CellFormat(contentWidth-blockWidth, 5, tr(left[i]), "", 0, "L", false, 0, "")
		pdf.CellFormat(blockWidth, 5, tr(right[i]), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(contentWidth, 5, "Payment: "+string(doc.SaleType), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont(fontFamily, "B", 9)
	for _, col := range columns {
		pdf.CellFormat(col.width, rowHeight, col.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 9)
	for _, line := range doc.Lines {
		cells := []string{
			fmt.Sprintf("%d", line.No),
			tr(line.Product),
			fmt.Sprintf("%d", line.Quantity),
			money(line.Rate),
			money(line.Gross),
			money(line.Discount),
			money(line.Net),
		}
		for i, col := range columns {
			pdf.CellFormat(col.width, rowHeight, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(240, 240, 240)
	totals := []string{
		fmt.Sprintf("%d items", len(doc.Lines)),
		fmt.Sprintf("%d", doc.TotalQuantity),
		"",
		money(doc.TotalGross),
		money(doc.TotalDiscount),
		money(doc.TotalNet),
	}
	pdf.CellFormat(columns[0].width+columns[1].width, rowHeight, totals[0], "1", 0, "L", true, 0, "")
	for i, col := range columns[2:] {
		pdf.CellFormat(col.width, rowHeight, totals[i+1], "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	signatures(pdf, tr(doc.DeliveryMan), contentWidth)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render invoice %s: %w", doc.Number, err)
	}
	return pdf.Output(w)
}

func signatures(pdf *fpdf.Fpdf, bookerName string, contentWidth float64) {
	lineLength := contentWidth / 3
	rightX := pageMargin + contentWidth - lineLength

	pdf.Ln(24)
	pdf.SetFont(fontFamily, "", 8)
	pdf.CellFormat(lineLength, 4, bookerName, "", 1, "L", false, 0, "")
	y := pdf.GetY()
	pdf.Line(pageMargin, y, pageMargin+lineLength, y)
	pdf.Line(rightX, y, rightX+lineLength, y)
	pdf.Ln(1)
	pdf.CellFormat(lineLength, 4, "Order Booker", "", 0, "L", false, 0, "")
	pdf.SetX(rightX)
	pdf.CellFormat(lineLength, 4, "Shopkeeper", "", 1, "R", false, 0, "")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
