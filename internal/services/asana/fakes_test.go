package asana

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock advances virtual time by every requested wait and fires immediately
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// stoppedClock never fires
type stoppedClock struct{}

func (stoppedClock) Now() time.Time                       { return time.Time{} }
func (stoppedClock) After(time.Duration) <-chan time.Time { return nil }

// pollStep is one scripted answer of the run endpoint
type pollStep struct {
	status RunStatus
	err    error
}

type scriptedFetcher struct {
	mu    sync.Mutex
	steps []pollStep
	calls int
}

func (f *scriptedFetcher) Run(ctx context.Context, runID string) (*ImportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	step := f.steps[len(f.steps)-1]
	if f.calls <= len(f.steps) {
		step = f.steps[f.calls-1]
	}
	if step.err != nil {
		return nil, step.err
	}
	run := &ImportRun{ID: runID, Status: step.status, Phase: string(step.status)}
	if step.status.IsTerminal() {
		run.ExecutionSummary = &ImportCounts{Tasks: EntityCounts{Create: 3}}
		run.ErrorLog = []ImportError{{EntityType: "task", SourceID: "99", Name: "Broken", Message: "no assignee"}}
	}
	return run, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errUpstream = errors.New("502: bad gateway")

// fakeConnector serves fixed fixtures; set the *Err fields to fail a call
type fakeConnector struct {
	scriptedFetcher

	connectErr       error
	disconnectErr    error
	workspacesErr    error
	localClientsErr  error
	projectsErr      error
	validateErr      error
	executeErr       error
	runsErr          error
	validateCalls    int
	executeCalls     int
	connectCalls     int
	lastValidateBody ImportRequest
}

func newFakeConnector(steps ...pollStep) *fakeConnector {
	if len(steps) == 0 {
		steps = []pollStep{{status: StatusRunning}, {status: StatusCompleted}}
	}
	return &fakeConnector{scriptedFetcher: scriptedFetcher{steps: steps}}
}

func (c *fakeConnector) Status(ctx context.Context) (*ConnectionStatus, error) {
	return &ConnectionStatus{Connected: true}, nil
}

func (c *fakeConnector) Test(ctx context.Context) (*TestResult, error) {
	return &TestResult{OK: true, User: AsanaUser{Name: "Ada"}}, nil
}

func (c *fakeConnector) Connect(ctx context.Context, token string) (*AsanaUser, error) {
	c.mu.Lock()
	c.connectCalls++
	c.mu.Unlock()
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return &AsanaUser{GID: "u1", Name: "Ada Lovelace"}, nil
}

func (c *fakeConnector) Disconnect(ctx context.Context) error {
	return c.disconnectErr
}

func (c *fakeConnector) Workspaces(ctx context.Context) ([]AsanaWorkspace, error) {
	if c.workspacesErr != nil {
		return nil, c.workspacesErr
	}
	return []AsanaWorkspace{{GID: "ws-1", Name: "Acme"}, {GID: "ws-2", Name: "Side"}}, nil
}

func (c *fakeConnector) LocalWorkspaces(ctx context.Context) ([]LocalWorkspace, error) {
	return []LocalWorkspace{{ID: "local-1", Name: "Main", IsPrimary: true}}, nil
}

func (c *fakeConnector) LocalClients(ctx context.Context) ([]LocalClient, error) {
	if c.localClientsErr != nil {
		return nil, c.localClientsErr
	}
	return []LocalClient{{ID: "client-1", CompanyName: "Initech"}}, nil
}

func (c *fakeConnector) Projects(ctx context.Context, workspaceGID string) ([]AsanaProject, error) {
	if c.projectsErr != nil {
		return nil, c.projectsErr
	}
	return []AsanaProject{
		{GID: "p-1", Name: "Website", TeamName: "Marketing"},
		{GID: "p-2", Name: "Backend", TeamName: "Engineering"},
		{GID: "p-3", Name: "Old", Archived: true},
	}, nil
}

func (c *fakeConnector) Validate(ctx context.Context, req ImportRequest) (*ValidationResult, error) {
	c.mu.Lock()
	c.validateCalls++
	c.lastValidateBody = req
	c.mu.Unlock()
	if c.validateErr != nil {
		return nil, c.validateErr
	}
	return &ValidationResult{
		Counts: ImportCounts{
			Projects: EntityCounts{Create: len(req.ProjectGIDs)},
			Tasks:    EntityCounts{Create: 10, Update: 2, Skip: 1, Error: 1},
		},
		Errors:            []ImportError{{EntityType: "task", SourceID: "t-9", Name: "Orphan", Message: "missing section"}},
		AutoCreatePreview: AutoCreatePreview{Clients: []string{"Marketing"}},
	}, nil
}

func (c *fakeConnector) Execute(ctx context.Context, req ImportRequest) (string, error) {
	c.mu.Lock()
	c.executeCalls++
	c.mu.Unlock()
	if c.executeErr != nil {
		return "", c.executeErr
	}
	return "run-1", nil
}

func (c *fakeConnector) Runs(ctx context.Context) ([]ImportRun, error) {
	if c.runsErr != nil {
		return nil, c.runsErr
	}
	return []ImportRun{{ID: "run-0", Status: StatusCompleted}}, nil
}

// recordingSink captures recorded runs
type recordingSink struct {
	mu   sync.Mutex
	runs []*ImportRun
}

func (s *recordingSink) Record(ctx context.Context, run *ImportRun, origin, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
