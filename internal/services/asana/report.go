package asana

import (
	"bufio"
	"io"
	"strings"
)

// ErrorReportHeader is the first line of an error report
const ErrorReportHeader = "Entity Type,Asana GID,Name,Error Message"

// WriteErrorReport writes the run's error log as CSV. Every value is
// quoted with embedded quotes doubled, so names containing commas,
// quotes or newlines survive a round trip through any RFC 4180 reader.
func WriteErrorReport(w io.Writer, errs []ImportError) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(ErrorReportHeader + "\n"); err != nil {
		return err
	}
	for _, e := range errs {
		fields := [...]string{e.EntityType, e.SourceID, e.Name, e.Message}
		for i, f := range fields {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(f)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ErrorReportCSV renders the report in memory
func ErrorReportCSV(errs []ImportError) string {
	var sb strings.Builder
	_ = WriteErrorReport(&sb, errs)
	return sb.String()
}

// ErrorReportFilename is the download name for a run's report
func ErrorReportFilename(runID string) string {
	return "asana-import-errors-" + runID + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
