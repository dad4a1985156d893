package csvimport

import (
	"strings"
)

// Column describes one importable field
type Column struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Schema is the column contract of one import panel
type Schema struct {
	Columns          []Column
	TemplateFilename string
	// Aliases maps lower-cased header spellings to column keys
	Aliases map[string]string
	// Keep drops parsed rows it returns false for; nil keeps every row
	Keep func(Row) bool
}

// Row is one parsed record keyed by column key
type Row map[string]string

// Template returns a header-only CSV users can fill in
func (s Schema) Template() string {
	keys := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		keys[i] = c.Key
	}
	return strings.Join(keys, ",") + "\n"
}

// resolve maps a raw header to its column key. Unknown headers are kept
// lower-cased.
func (s Schema) resolve(header string) string {
	h := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(header), `"`)))
	if key, ok := s.Aliases[h]; ok {
		return key
	}
	for _, c := range s.Columns {
		if strings.ToLower(c.Key) == h {
			return c.Key
		}
	}
	return h
}

// UsersSchema is the tenant user-management import
func UsersSchema() Schema {
	return Schema{
		Columns: []Column{
			{Key: "email", Label: "Email", Required: true},
			{Key: "firstName", Label: "First Name"},
			{Key: "lastName", Label: "Last Name"},
			{Key: "role", Label: "Role"},
		},
		TemplateFilename: "users-template.csv",
		Aliases: map[string]string{
			"firstname":  "firstName",
			"first_name": "firstName",
			"lastname":   "lastName",
			"last_name":  "lastName",
		},
		Keep: func(r Row) bool {
			return strings.Contains(r["email"], "@")
		},
	}
}
