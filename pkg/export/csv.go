// Package export renders schedule rows for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ajdev/loanbook/pkg/models"
)

// Header is the fixed column order shared by every export target.
var Header = []string{
	"Month",
	"Date",
	"Beginning Balance",
	"Interest",
	"Principal",
	"Scheduled Installment",
	"Required Final Payment",
	"Actual Paid",
	"Status",
}

// WriteCSV writes a schedule as CSV, one record per installment. The Actual
// Paid column falls back to the scheduled installment for months where no
// override was entered.
func WriteCSV(w io.Writer, rows []models.ScheduleRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		actualPaid := row.ScheduledInstallment
		if row.ActualPaid != nil {
			actualPaid = *row.ActualPaid
		}
		record := []string{
			strconv.Itoa(row.Month),
			row.Date.Format(models.DateLayout),
			row.BeginningBalance.String(),
			row.InterestPortion.String(),
			row.PrincipalPortion.String(),
			row.ScheduledInstallment.String(),
			row.RequiredFinalPayment.String(),
			actualPaid.String(),
			string(row.Status),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
