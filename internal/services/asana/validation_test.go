package asana

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() ImportRequest {
	return ImportRequest{
		AsanaWorkspaceGID: "ws-1",
		TargetWorkspaceID: "local-1",
		ProjectGIDs:       []string{"p-1"},
		Options:           DefaultOptions(),
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ImportRequest)
		field  string
	}{
		{"Should require a source workspace", func(r *ImportRequest) { r.AsanaWorkspaceGID = " " }, "asanaWorkspaceGid"},
		{"Should require a target workspace", func(r *ImportRequest) { r.TargetWorkspaceID = "" }, "targetWorkspaceId"},
		{"Should require projects", func(r *ImportRequest) { r.ProjectGIDs = nil }, "projectGids"},
		{"Should reject duplicate projects", func(r *ImportRequest) { r.ProjectGIDs = []string{"a", "a"} }, "projectGids"},
		{"Should reject an unknown strategy", func(r *ImportRequest) { r.Options.ClientMappingStrategy = "random" }, "clientMappingStrategy"},
		{"Should reject a client with team mapping", func(r *ImportRequest) {
			r.Options.ClientMappingStrategy = MappingTeam
			r.Options.TargetClientID = "c-1"
		}, "targetClientId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := ValidateRequest(&req)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	t.Run("Should accept a complete request", func(t *testing.T) {
		req := validRequest()
		assert.NoError(t, ValidateRequest(&req))
	})

	t.Run("Should default an empty strategy to single", func(t *testing.T) {
		req := validRequest()
		req.Options.ClientMappingStrategy = ""
		require.NoError(t, ValidateRequest(&req))
		assert.Equal(t, MappingSingle, req.Options.ClientMappingStrategy)
	})
}
