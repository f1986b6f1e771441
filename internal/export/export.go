// Package export writes reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"salesdesk/backend/internal/domain"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SummarySheet = "Summary"
	SalesSheet   = "Sales"
)

var salesHeader = []any{"Sale ID", "Date", "Shop", "Salesman", "Type", "Units", "Gross", "Discount %", "Total"}

// WriteSalesReport renders the summary figures and one row per sale. Dates
// are shown in loc.
func WriteSalesReport(w io.Writer, report domain.SalesReport, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	summary := [][]any{
		{"Store", report.StoreID},
		{"From", boundLabel(report.From, loc)},
		{"To", boundLabel(report.To, loc)},
		{"Sales", report.SaleCount},
		{"Units sold", report.UnitsSold},
		{"Gross", amount(report.Gross)},
		{"Discount", amount(report.DiscountAmount)},
		{"Net", amount(report.Net)},
		{"Cash", amount(report.CashTotal)},
		{"Credit", amount(report.CreditTotal)},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SalesSheet); err != nil {
		return err
	}
	if err := setRow(f, SalesSheet, 1, salesHeader); err != nil {
		return err
	}
	for i, sale := range report.Sales {
		row := []any{
			sale.ID,
			sale.SaleTime.In(loc).Format("2006-01-02 15:04"),
			sale.ShopName,
			sale.SalesmanName,
			string(sale.SaleType),
			sale.Units(),
			amount(sale.Gross()),
			amount(sale.Discount),
			amount(sale.Total),
		}
		if err := setRow(f, SalesSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write sales workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func amount(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}

func boundLabel(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "open"
	}
	return t.In(loc).Format("2006-01-02")
}
