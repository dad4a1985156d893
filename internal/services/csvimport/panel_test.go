package csvimport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-console/internal/api"
)

func TestPanel(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delegate previewed rows with options", func(t *testing.T) {
		var gotRows []Row
		var gotOpts Options
		panel := NewPanel(UsersSchema(), Naive, func(ctx context.Context, rows []Row, opts Options) (*Result, error) {
			gotRows, gotOpts = rows, opts
			return &Result{Created: 1, Skipped: 1, Results: []RowResult{
				{Name: "ada@example.com", Status: StatusCreated, ID: "u-1"},
				{Name: "bob@example.com", Status: StatusSkipped, Reason: "exists"},
			}}, nil
		})

		preview, err := panel.Load(strings.NewReader("email\nada@example.com\nbob@example.com\n"))
		require.NoError(t, err)
		assert.Len(t, preview, 2)

		result, err := panel.Submit(ctx, Options{SendInvites: true})

		require.NoError(t, err)
		assert.Len(t, gotRows, 2)
		assert.True(t, gotOpts.SendInvites)
		assert.Equal(t, 1, result.Created)
		assert.Same(t, result, panel.Result())
	})

	t.Run("Should refuse to submit without rows", func(t *testing.T) {
		called := false
		panel := NewPanel(UsersSchema(), Naive, func(context.Context, []Row, Options) (*Result, error) {
			called = true
			return &Result{}, nil
		})

		_, err := panel.Submit(ctx, Options{})

		assert.ErrorIs(t, err, ErrNoRows)
		assert.False(t, called)
	})

	t.Run("Should clear the preview when a new file fails to parse", func(t *testing.T) {
		panel := NewPanel(UsersSchema(), Naive, nil)
		_, err := panel.Load(strings.NewReader("email\nada@example.com\n"))
		require.NoError(t, err)

		_, err = panel.Load(strings.NewReader("name\nAda\n"))

		assert.ErrorIs(t, err, ErrMissingColumn)
		assert.Empty(t, panel.Rows())
	})

	t.Run("Should keep the preview when the import fails", func(t *testing.T) {
		boom := errors.New("502: upstream")
		panel := NewPanel(UsersSchema(), Naive, func(context.Context, []Row, Options) (*Result, error) {
			return nil, boom
		})
		_, err := panel.Load(strings.NewReader("email\nada@example.com\n"))
		require.NoError(t, err)

		_, err = panel.Submit(ctx, Options{})

		assert.ErrorIs(t, err, boom)
		assert.Len(t, panel.Rows(), 1)
		assert.Nil(t, panel.Result())
	})

	t.Run("Should not leak preview rows to callers", func(t *testing.T) {
		panel := NewPanel(UsersSchema(), Naive, nil)
		preview, err := panel.Load(strings.NewReader("email\nada@example.com\n"))
		require.NoError(t, err)

		preview[0]["email"] = "changed"

		assert.Equal(t, "ada@example.com", panel.Rows()[0]["email"])
	})
}

func TestUsersImporter(t *testing.T) {
	t.Run("Should post rows to the tenant user import endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/super/tenants/t-1/users/import", r.URL.Path)
			var body struct {
				Users   []Row   `json:"users"`
				Options Options `json:"options"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body.Users[0]["email"])
			assert.Equal(t, "member", body.Options.DefaultRole)
			_, _ = w.Write([]byte(`{"created":1,"skipped":0,"errors":0,"results":[{"name":"Ada","status":"created","id":"u-1"}]}`))
		}))
		defer server.Close()

		importer := UsersImporter(api.NewClient(server.URL, "tok"), "t-1")
		result, err := importer(context.Background(), []Row{{"email": "ada@example.com"}}, Options{DefaultRole: "member"})

		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)
		assert.Equal(t, "u-1", result.Results[0].ID)
	})
}
