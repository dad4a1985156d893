package asana

import (
	"encoding/json"
	"fmt"
	"time"
)

// DuplicatePreventionNotice is shown before execution. Re-running an import
// with the same selection relies on server-side de-duplication by Asana id;
// the console does not enforce it.
const DuplicatePreventionNotice = "Duplicate prevention is always enabled: records already imported are matched by their Asana ID and updated instead of duplicated."

// Step is a wizard state
type Step string

const (
	StepConnect   Step = "connect"
	StepWorkspace Step = "workspace"
	StepProjects  Step = "projects"
	StepOptions   Step = "options"
	StepValidate  Step = "validate"
	StepExecute   Step = "execute"
	StepSummary   Step = "summary"
	StepHistory   Step = "history"
)

// LinearSteps is the main flow order; history is a side branch
var LinearSteps = []Step{
	StepConnect, StepWorkspace, StepProjects, StepOptions,
	StepValidate, StepExecute, StepSummary,
}

// RunStatus is the server-side lifecycle of an import run
type RunStatus string

const (
	StatusPending             RunStatus = "pending"
	StatusRunning             RunStatus = "running"
	StatusCompleted           RunStatus = "completed"
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	StatusFailed              RunStatus = "failed"
)

// IsTerminal reports whether the run can no longer change
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// ClientMappingStrategy decides how imported projects attach to clients
type ClientMappingStrategy string

const (
	// MappingSingle attaches every imported project to one client
	MappingSingle ClientMappingStrategy = "single"
	// MappingTeam maps each source project's team name to a client
	MappingTeam ClientMappingStrategy = "team"
)

// ImportOptions are the independent switches of an import
type ImportOptions struct {
	AutoCreateClients     bool                  `json:"autoCreateClients"`
	AutoCreateProjects    bool                  `json:"autoCreateProjects"`
	AutoCreateTasks       bool                  `json:"autoCreateTasks"`
	AutoCreateUsers       bool                  `json:"autoCreateUsers"`
	FallbackUnassigned    bool                  `json:"fallbackUnassigned"`
	ClientMappingStrategy ClientMappingStrategy `json:"clientMappingStrategy"`
	TargetClientID        string                `json:"targetClientId,omitempty"`
}

// DefaultOptions mirrors the console's initial option state
func DefaultOptions() ImportOptions {
	return ImportOptions{
		AutoCreateClients:     true,
		AutoCreateProjects:    true,
		AutoCreateTasks:       true,
		AutoCreateUsers:       false,
		FallbackUnassigned:    true,
		ClientMappingStrategy: MappingSingle,
	}
}

// ImportRequest is the body of both validate and execute
type ImportRequest struct {
	AsanaWorkspaceGID  string        `json:"asanaWorkspaceGid"`
	AsanaWorkspaceName string        `json:"asanaWorkspaceName"`
	ProjectGIDs        []string      `json:"projectGids"`
	TargetWorkspaceID  string        `json:"targetWorkspaceId"`
	Options            ImportOptions `json:"options"`
}

// EntityKind names one row of ImportCounts
type EntityKind string

const (
	KindUsers    EntityKind = "users"
	KindClients  EntityKind = "clients"
	KindProjects EntityKind = "projects"
	KindSections EntityKind = "sections"
	KindTasks    EntityKind = "tasks"
	KindSubtasks EntityKind = "subtasks"
)

// EntityKinds lists every kind in display order
var EntityKinds = []EntityKind{KindUsers, KindClients, KindProjects, KindSections, KindTasks, KindSubtasks}

// EntityCounts is the outcome tally for one entity kind
type EntityCounts struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Skip   int `json:"skip"`
	Error  int `json:"error"`
}

// Total is the number of source records considered
func (c EntityCounts) Total() int {
	return c.Create + c.Update + c.Skip + c.Error
}

// ImportCounts tallies outcomes per entity kind
type ImportCounts struct {
	Users    EntityCounts `json:"users"`
	Clients  EntityCounts `json:"clients"`
	Projects EntityCounts `json:"projects"`
	Sections EntityCounts `json:"sections"`
	Tasks    EntityCounts `json:"tasks"`
	Subtasks EntityCounts `json:"subtasks"`
}

// For returns the counts of one kind
func (c ImportCounts) For(kind EntityKind) EntityCounts {
	switch kind {
	case KindUsers:
		return c.Users
	case KindClients:
		return c.Clients
	case KindProjects:
		return c.Projects
	case KindSections:
		return c.Sections
	case KindTasks:
		return c.Tasks
	case KindSubtasks:
		return c.Subtasks
	}
	return EntityCounts{}
}

// Totals sums every kind
func (c ImportCounts) Totals() EntityCounts {
	var sum EntityCounts
	for _, kind := range EntityKinds {
		k := c.For(kind)
		sum.Create += k.Create
		sum.Update += k.Update
		sum.Skip += k.Skip
		sum.Error += k.Error
	}
	return sum
}

// CountMismatchError reports a kind whose outcomes do not add up
type CountMismatchError struct {
	Kind     EntityKind
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: create+update+skip+error = %d, expected %d records", e.Kind, e.Got, e.Expected)
}

// Verify checks that every kind accounts for exactly the submitted records.
// Kinds missing from submitted are expected to be zero.
func (c ImportCounts) Verify(submitted map[EntityKind]int) error {
	for _, kind := range EntityKinds {
		got := c.For(kind).Total()
		if expected := submitted[kind]; got != expected {
			return &CountMismatchError{Kind: kind, Expected: expected, Got: got}
		}
	}
	return nil
}

// ImportError is one row-level failure
type ImportError struct {
	EntityType string `json:"entityType"`
	SourceID   string `json:"sourceId"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// AutoCreatePreview lists records the import would create on the fly
type AutoCreatePreview struct {
	Clients []string `json:"clients"`
	Users   []string `json:"users"`
}

// ValidationResult is the dry-run preview of an import
type ValidationResult struct {
	Counts            ImportCounts      `json:"counts"`
	Errors            []ImportError     `json:"errors"`
	AutoCreatePreview AutoCreatePreview `json:"autoCreatePreview"`
}

// ImportRun is a server snapshot of one import execution
type ImportRun struct {
	ID                 string        `json:"id"`
	Status             RunStatus     `json:"status"`
	Phase              string        `json:"phase"`
	AsanaWorkspaceName string        `json:"asanaWorkspaceName"`
	ProjectGIDs        []string      `json:"asanaProjectGids"`
	ExecutionSummary   *ImportCounts `json:"executionSummary,omitempty"`
	ErrorLog           []ImportError `json:"errorLog,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	CompletedAt        *time.Time    `json:"completedAt,omitempty"`
}

// AsanaUser is the principal behind a personal access token
type AsanaUser struct {
	GID   string `json:"gid,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare display name
func (u *AsanaUser) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*u = AsanaUser{Name: name}
		return nil
	}
	type plain AsanaUser
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = AsanaUser(p)
	return nil
}

// DisplayName prefers the name, then the email
func (u AsanaUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type ConnectionStatus struct {
	Connected bool `json:"connected"`
}

type TestResult struct {
	OK   bool      `json:"ok"`
	User AsanaUser `json:"user"`
}

type AsanaWorkspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type AsanaProject struct {
	GID      string `json:"gid"`
	Name     string `json:"name"`
	TeamName string `json:"teamName,omitempty"`
	Archived bool   `json:"archived,omitempty"`
}

type LocalWorkspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"isPrimary,omitempty"`
}

type LocalClient struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
}
