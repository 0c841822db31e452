package reporter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
)

// DividerMarker is the description written on the divider row separating
// matched from unmatched records in persisted output.
const DividerMarker = "-----------"

// WriteRecordsCSV persists a record collection: matched records first, then
// a divider row, then unmatched records, each group in collection order.
// This is the write-back half of the loading schema the parsers read.
func WriteRecordsCSV(w io.Writer, recs []*records.Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "amount", "type", "description", "cheque_number", "matched"}); err != nil {
		return err
	}

	writeRecord := func(rec *records.Record) error {
		extraInfo := ""
		if rec.ExtraInfo != 0 {
			extraInfo = strconv.Itoa(rec.ExtraInfo)
		}
		return writer.Write([]string{
			rec.Date.Format(records.DateFormat),
			rec.MainAmount.StringFixed(2),
			rec.Type,
			rec.Description,
			extraInfo,
			strconv.FormatBool(rec.Matched),
		})
	}

	for _, rec := range recs {
		if !rec.Matched || rec.Divider {
			continue
		}
		if err := writeRecord(rec); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{"", "", "", DividerMarker, "", ""}); err != nil {
		return err
	}

	for _, rec := range recs {
		if rec.Matched || rec.Divider {
			continue
		}
		if err := writeRecord(rec); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
