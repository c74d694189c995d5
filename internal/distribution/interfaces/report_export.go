package interfaces

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	distribution "rewardpool/internal/distribution/domain"
	"rewardpool/internal/observability/metrics"
)

const (
	reportFormatPDF  = "pdf"
	reportFormatXLSX = "xlsx"
)

// BuildPeriodReportPDF renders a PDF summary of a period and its distributions.
func BuildPeriodReportPDF(state *distribution.PeriodState, items []distribution.Distribution) ([]byte, error) {
	if state == nil {
		return nil, distribution.ErrPeriodNotFound
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Reward Distribution Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", state.Key))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Gross Pool: %s", formatAmount(state.GrossPool)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reference Price: %.4f (%s)", state.ReferencePrice, state.PriceSource))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Capacity: %.3f", state.TotalCapacity))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entities: %d", state.EntitiesProcessed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Distributed: %s", state.TotalDistributed.StringFixed(distribution.AmountPrecision)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Root: %s", rootOrNone(state)))
	pdf.Ln(5)
	if state.CompletedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Completed: %s", state.CompletedAt.UTC().Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	headers := []struct {
		title string
		width float64
	}{
		{"Miner", 40}, {"Owner", 40}, {"Gross", 35}, {"Cost", 35}, {"Discount", 20},
		{"Owner Value", 35}, {"Reinvest", 30}, {"Charity", 30},
	}
	for _, h := range headers {
		pdf.CellFormat(h.width, 6, h.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		pdf.CellFormat(40, 6, item.MinerID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, item.OwnerID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, formatAmount(item.Gross), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatAmount(item.Cost), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.DiscountBps), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, item.OwnerValue.StringFixed(distribution.AmountPrecision), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, item.ReinvestValue.StringFixed(distribution.AmountPrecision), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, item.CharityValue.StringFixed(distribution.AmountPrecision), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPeriodReportXLSX renders an XLSX workbook with summary and distribution sheets.
func BuildPeriodReportXLSX(state *distribution.PeriodState, items []distribution.Distribution) ([]byte, error) {
	if state == nil {
		return nil, distribution.ErrPeriodNotFound
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	summarySheet := "summary"
	itemsSheet := "distributions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Period", state.Key.String()},
		{"Gross Pool", state.GrossPool},
		{"Reference Price", state.ReferencePrice},
		{"Price Source", string(state.PriceSource)},
		{"Total Capacity", state.TotalCapacity},
		{"Network Capacity", state.NetworkCapacity},
		{"Entities", state.EntitiesProcessed},
		{"Total Distributed", state.TotalDistributed.StringFixed(distribution.AmountPrecision)},
		{"Root", rootOrNone(state)},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Reward Distribution Report")
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	columns := []string{"Miner", "Owner", "Gross", "Energy Cost", "Service Fee", "Discount Bps", "Cost", "Net", "Owner Value", "Reinvest", "Charity", "Leaf Hash", "Leaf Index"}
	for i, title := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(itemsSheet, cell, title)
	}
	for i, item := range items {
		values := []any{
			item.MinerID,
			item.OwnerID,
			item.Gross,
			item.EnergyCost,
			item.ServiceFee,
			item.DiscountBps,
			item.Cost,
			item.Net.StringFixed(distribution.AmountPrecision),
			item.OwnerValue.StringFixed(distribution.AmountPrecision),
			item.ReinvestValue.StringFixed(distribution.AmountPrecision),
			item.CharityValue.StringFixed(distribution.AmountPrecision),
			item.LeafHash,
			leafIndexCell(item),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(itemsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HandleReport serves GET /api/v1/periods/{period}/report.{pdf|xlsx}.
func (h *QueryHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format := mux.Vars(r)["format"]
	if format != reportFormatPDF && format != reportFormatXLSX {
		writeError(w, http.StatusBadRequest, "unsupported report format")
		return
	}
	period, state, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	items, err := h.distributions.ListByPeriod(r.Context(), period)
	if err != nil {
		h.logger.Error("list distributions failed", zap.String("period", period.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query distributions error")
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case reportFormatPDF:
		body, err = BuildPeriodReportPDF(state, items)
		contentType = "application/pdf"
	case reportFormatXLSX:
		body, err = BuildPeriodReportXLSX(state, items)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	metrics.ObserveReportExport(format, metrics.Result(err), time.Since(start))
	if err != nil {
		h.logger.Error("render report failed", zap.String("period", period.String()), zap.String("format", format), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render report error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"rewards-%s.%s\"", period, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.8f", v)
}

func rootOrNone(state *distribution.PeriodState) string {
	if !state.HasRoot() {
		return "none"
	}
	return state.Root
}

func leafIndexCell(d distribution.Distribution) any {
	if d.LeafIndex == nil {
		return ""
	}
	return *d.LeafIndex
}
