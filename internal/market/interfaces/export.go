package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	market "microgrid-market/internal/market/domain"
)

// BuildHistoryPDF renders a trade history window as a PDF report.
func BuildHistoryPDF(status market.GridStatus, pricing market.PricingState, trades []*market.Trade) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Trade History Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Grid Load (kW): %.2f", status.LoadKW))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Grid Supply (kW): %.2f", status.SupplyKW))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stability: %s", status.Stability))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Current Price (kWh): %.4f", pricing.CurrentPrice))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Buyer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Seller", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, trade := range trades {
		pdf.CellFormat(35, 6, trade.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, trade.BuyerID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, trade.SellerID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", trade.EnergyAmountKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.4f", trade.TotalPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, trade.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a trade history window as an XLSX workbook.
func BuildHistoryXLSX(status market.GridStatus, pricing market.PricingState, trades []*market.Trade) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	tradesSheet := "trades"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(tradesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Trade History Report")
	_ = f.SetCellValue(summarySheet, "A3", "Grid Load (kW)")
	_ = f.SetCellValue(summarySheet, "B3", status.LoadKW)
	_ = f.SetCellValue(summarySheet, "A4", "Grid Supply (kW)")
	_ = f.SetCellValue(summarySheet, "B4", status.SupplyKW)
	_ = f.SetCellValue(summarySheet, "A5", "Peak Load (kW)")
	_ = f.SetCellValue(summarySheet, "B5", status.PeakLoadKW)
	_ = f.SetCellValue(summarySheet, "A6", "Stability")
	_ = f.SetCellValue(summarySheet, "B6", status.Stability)
	_ = f.SetCellValue(summarySheet, "A7", "Current Price (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", pricing.CurrentPrice)
	_ = f.SetCellValue(summarySheet, "A8", "Base Price (kWh)")
	_ = f.SetCellValue(summarySheet, "B8", pricing.BasePrice)

	headers := []string{"Created", "Trade ID", "Buyer", "Seller", "kWh", "Price/kWh", "Total", "Status", "Priority"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(tradesSheet, cell, header)
	}
	for i, trade := range trades {
		row := i + 2
		values := []any{
			trade.CreatedAt.Format(time.RFC3339),
			trade.ID,
			trade.BuyerID,
			trade.SellerID,
			trade.EnergyAmountKWh,
			trade.PricePerKWh,
			trade.TotalPrice,
			trade.Status,
			trade.Priority,
		}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(tradesSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
