package csvimport

import (
	"context"
	"fmt"

	"tenant-console/internal/api"
)

type usersImportRequest struct {
	Users   []Row   `json:"users"`
	Options Options `json:"options"`
}

// UsersImporter posts rows to the tenant's bulk user import endpoint
func UsersImporter(client *api.Client, tenantID string) ImportFunc {
	return func(ctx context.Context, rows []Row, opts Options) (*Result, error) {
		var result Result
		body := usersImportRequest{Users: rows, Options: opts}
		if err := client.PostJSON(ctx, api.TenantPath(tenantID, "users", "import"), body, &result); err != nil {
			return nil, fmt.Errorf("failed to import %d users: %w", len(rows), err)
		}
		return &result, nil
	}
}
