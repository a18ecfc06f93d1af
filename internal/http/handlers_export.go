package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	exportSheet      = "Transactions"
	xlsxMediaType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvMediaType     = "text/csv; charset=utf-8"
	exportFormatCSV  = "csv"
	exportFormatXLSX = "xlsx"
)

var exportHeader = []string{"Date", "Type", "Category", "Amount", "Description", "Vendor"}

func exportRow(tx core.Transaction) []string {
	return []string{
		tx.Date.String(),
		string(tx.Type),
		tx.CategoryName,
		tx.Amount.String(),
		tx.Description,
		tx.Vendor,
	}
}

// handleExportExpenses downloads the range as CSV (default) or XLSX.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = exportFormatCSV
	}
	if format != exportFormatCSV && format != exportFormatXLSX {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var (
		body      bytes.Buffer
		mediaType string
	)
	switch format {
	case exportFormatXLSX:
		mediaType = xlsxMediaType
		err = writeXLSX(&body, txs)
	default:
		mediaType = csvMediaType
		err = writeCSV(&body, txs)
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filename := fmt.Sprintf("transactions_%s_%s.%s", dr.Start, dr.End, format)
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}

func writeCSV(buf *bytes.Buffer, txs []core.Transaction) error {
	cw := csv.NewWriter(buf)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := cw.Write(exportRow(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(buf *bytes.Buffer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}
	for i, tx := range txs {
		row := i + 2
		values := []any{tx.Date.String(), string(tx.Type), tx.CategoryName, tx.Amount.InexactFloat64(), tx.Description, tx.Vendor}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}

	widths := map[string]float64{"A": 12, "B": 10, "C": 18, "D": 16, "E": 40, "F": 24}
	for col, width := range widths {
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return err
		}
	}
	return f.Write(buf)
}
