package asana

import (
	"context"
	"errors"
	"fmt"

	"tenant-console/internal/api"
)

// Connector is the tenant's Asana integration API
type Connector interface {
	RunFetcher

	Status(ctx context.Context) (*ConnectionStatus, error)
	Test(ctx context.Context) (*TestResult, error)
	Connect(ctx context.Context, token string) (*AsanaUser, error)
	Disconnect(ctx context.Context) error
	Workspaces(ctx context.Context) ([]AsanaWorkspace, error)
	LocalWorkspaces(ctx context.Context) ([]LocalWorkspace, error)
	LocalClients(ctx context.Context) ([]LocalClient, error)
	Projects(ctx context.Context, workspaceGID string) ([]AsanaProject, error)
	Validate(ctx context.Context, req ImportRequest) (*ValidationResult, error)
	Execute(ctx context.Context, req ImportRequest) (string, error)
	Runs(ctx context.Context) ([]ImportRun, error)
}

// RunFetcher reads a single run snapshot
type RunFetcher interface {
	Run(ctx context.Context, runID string) (*ImportRun, error)
}

// APIConnector implements Connector over the super-admin REST API
type APIConnector struct {
	client   *api.Client
	tenantID string
}

// NewAPIConnector binds the Asana endpoints of one tenant
func NewAPIConnector(client *api.Client, tenantID string) *APIConnector {
	return &APIConnector{client: client, tenantID: tenantID}
}

func (c *APIConnector) path(parts ...string) string {
	return api.TenantPath(c.tenantID, append([]string{"asana"}, parts...)...)
}

func (c *APIConnector) Status(ctx context.Context) (*ConnectionStatus, error) {
	var out ConnectionStatus
	if err := c.client.GetJSON(ctx, c.path("status"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to read connection status: %w", err)
	}
	return &out, nil
}

func (c *APIConnector) Test(ctx context.Context) (*TestResult, error) {
	var out TestResult
	if err := c.client.PostJSON(ctx, c.path("test"), nil, &out); err != nil {
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return &out, nil
}

func (c *APIConnector) Connect(ctx context.Context, token string) (*AsanaUser, error) {
	var out struct {
		User AsanaUser `json:"user"`
	}
	body := map[string]string{"personalAccessToken": token}
	if err := c.client.PostJSON(ctx, c.path("connect"), body, &out); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &out.User, nil
}

func (c *APIConnector) Disconnect(ctx context.Context) error {
	if err := c.client.PostJSON(ctx, c.path("disconnect"), nil, nil); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

func (c *APIConnector) Workspaces(ctx context.Context) ([]AsanaWorkspace, error) {
	var out struct {
		Workspaces []AsanaWorkspace `json:"workspaces"`
	}
	if err := c.client.GetJSON(ctx, c.path("workspaces"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to load Asana workspaces: %w", err)
	}
	return out.Workspaces, nil
}

func (c *APIConnector) LocalWorkspaces(ctx context.Context) ([]LocalWorkspace, error) {
	var out struct {
		Workspaces []LocalWorkspace `json:"workspaces"`
	}
	if err := c.client.GetJSON(ctx, c.path("local-workspaces"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to load tenant workspaces: %w", err)
	}
	return out.Workspaces, nil
}

func (c *APIConnector) LocalClients(ctx context.Context) ([]LocalClient, error) {
	var out struct {
		Clients []LocalClient `json:"clients"`
	}
	if err := c.client.GetJSON(ctx, c.path("local-clients"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to load tenant clients: %w", err)
	}
	return out.Clients, nil
}

func (c *APIConnector) Projects(ctx context.Context, workspaceGID string) ([]AsanaProject, error) {
	var out struct {
		Projects []AsanaProject `json:"projects"`
	}
	if err := c.client.GetJSON(ctx, c.path("workspaces", workspaceGID, "projects"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to load Asana projects: %w", err)
	}
	return out.Projects, nil
}

func (c *APIConnector) Validate(ctx context.Context, req ImportRequest) (*ValidationResult, error) {
	var out ValidationResult
	if err := c.client.PostJSON(ctx, c.path("validate"), req, &out); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &out, nil
}

func (c *APIConnector) Execute(ctx context.Context, req ImportRequest) (string, error) {
	var out struct {
		RunID string `json:"runId"`
	}
	if err := c.client.PostJSON(ctx, c.path("execute"), req, &out); err != nil {
		return "", fmt.Errorf("failed to start import: %w", err)
	}
	if out.RunID == "" {
		return "", errors.New("failed to start import: no run id returned")
	}
	return out.RunID, nil
}

func (c *APIConnector) Run(ctx context.Context, runID string) (*ImportRun, error) {
	var out ImportRun
	if err := c.client.GetJSON(ctx, c.path("runs", runID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return &out, nil
}

func (c *APIConnector) Runs(ctx context.Context) ([]ImportRun, error) {
	var out struct {
		Runs []ImportRun `json:"runs"`
	}
	if err := c.client.GetJSON(ctx, c.path("runs"), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to load import history: %w", err)
	}
	return out.Runs, nil
}
