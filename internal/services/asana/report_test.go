package asana

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReport(t *testing.T) {
	t.Run("Should quote every value and double embedded quotes", func(t *testing.T) {
		out := ErrorReportCSV([]ImportError{
			{EntityType: "user", SourceID: "123", Name: `Bob "Bubba" Smith`, Message: "no email"},
		})

		assert.Equal(t,
			"Entity Type,Asana GID,Name,Error Message\n"+
				`"user","123","Bob ""Bubba"" Smith","no email"`+"\n",
			out)
	})

	t.Run("Should round trip through a standard CSV reader", func(t *testing.T) {
		errs := []ImportError{
			{EntityType: "user", SourceID: "1", Name: `Bob "Bubba" Smith`, Message: "duplicate"},
			{EntityType: "task", SourceID: "2", Name: "Plan, then build", Message: "line one\nline two"},
			{EntityType: "project", SourceID: "3", Name: "", Message: `"quoted"`},
		}

		records, err := csv.NewReader(strings.NewReader(ErrorReportCSV(errs))).ReadAll()

		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"Entity Type", "Asana GID", "Name", "Error Message"}, records[0])
		for i, e := range errs {
			assert.Equal(t, []string{e.EntityType, e.SourceID, e.Name, e.Message}, records[i+1])
		}
	})

	t.Run("Should write only the header for an empty log", func(t *testing.T) {
		assert.Equal(t, ErrorReportHeader+"\n", ErrorReportCSV(nil))
	})

	t.Run("Should name the file after the run", func(t *testing.T) {
		assert.Equal(t, "asana-import-errors-run-42.csv", ErrorReportFilename("run-42"))
	})
}
