package asana

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tenant-console/internal/logging"
	"tenant-console/internal/models"
)

// ErrSessionClosed is returned by every action after Close
var ErrSessionClosed = errors.New("wizard session closed")

// State is a point-in-time copy of a wizard session
type State struct {
	SessionID           string            `json:"sessionId"`
	Step                Step              `json:"step"`
	Connected           bool              `json:"connected"`
	AsanaUser           string            `json:"asanaUser,omitempty"`
	SourceWorkspaces    []AsanaWorkspace  `json:"sourceWorkspaces"`
	LocalWorkspaces     []LocalWorkspace  `json:"localWorkspaces"`
	LocalClients        []LocalClient     `json:"localClients"`
	SourceWorkspaceGID  string            `json:"sourceWorkspaceGid,omitempty"`
	SourceWorkspaceName string            `json:"sourceWorkspaceName,omitempty"`
	TargetWorkspaceID   string            `json:"targetWorkspaceId,omitempty"`
	Projects            []AsanaProject    `json:"projects"`
	SelectedProjectGIDs []string          `json:"selectedProjectGids"`
	Options             ImportOptions     `json:"options"`
	Validation          *ValidationResult `json:"validation,omitempty"`
	RunID               string            `json:"runId,omitempty"`
	Run                 *ImportRun        `json:"run,omitempty"`
	Polling             bool              `json:"polling"`
	PollError           string            `json:"pollError,omitempty"`
	History             []ImportRun       `json:"history,omitempty"`
	Visited             []Step            `json:"visited"`
	CanLoadProjects     bool              `json:"canLoadProjects"`
	CanConfigureOptions bool              `json:"canConfigureOptions"`
}

// Session drives one pass through the import wizard. Actions are
// serialized; Snapshot may be called at any time, including while a
// run is being polled.
type Session struct {
	id     string
	conn   Connector
	poller *Poller
	sink   RunSink
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex // one action at a time

	mu         sync.Mutex
	st         State
	gen        uint64 // bumped whenever the flow resets or polling is abandoned
	pollErr    error
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	polls      sync.WaitGroup
	closed     bool
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionID overrides the generated id
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithRunSink records every run the session sees finish
func WithRunSink(sink RunSink) SessionOption {
	return func(s *Session) { s.sink = sink }
}

// NewSession starts a wizard on the connect step
func NewSession(conn Connector, poller *Poller, opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.New().String(),
		conn:   conn,
		poller: poller,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.log = logging.Named("wizard").With(zap.String("session_id", s.id))

	s.st = State{SessionID: s.id, Options: DefaultOptions()}
	s.enter(StepConnect)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.st
	st.SourceWorkspaces = slices.Clone(s.st.SourceWorkspaces)
	st.LocalWorkspaces = slices.Clone(s.st.LocalWorkspaces)
	st.LocalClients = slices.Clone(s.st.LocalClients)
	st.Projects = slices.Clone(s.st.Projects)
	st.SelectedProjectGIDs = slices.Clone(s.st.SelectedProjectGIDs)
	st.History = slices.Clone(s.st.History)
	st.Visited = slices.Clone(s.st.Visited)
	if s.st.Validation != nil {
		v := *s.st.Validation
		st.Validation = &v
	}
	if s.st.Run != nil {
		r := *s.st.Run
		st.Run = &r
	}
	st.CanLoadProjects = s.canLoadProjects()
	st.CanConfigureOptions = s.canConfigureOptions()
	return st
}

// Step returns the current step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Step
}

// PollErr returns the error that ended the last poll, if any
func (s *Session) PollErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollErr
}

// Refresh reads the connection status from the server
func (s *Session) Refresh(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	status, err := s.conn.Status(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.st.Connected = status.Connected
	if !status.Connected {
		s.st.AsanaUser = ""
	}
	s.mu.Unlock()
	return nil
}

// TestConnection checks the stored Asana credentials
func (s *Session) TestConnection(ctx context.Context) (*TestResult, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return s.conn.Test(ctx)
}

// Connect stores a personal access token on the server. The token is
// not kept by the session.
func (s *Session) Connect(ctx context.Context, token string) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	token = strings.TrimSpace(token)
	if err := s.guard("connect", func(st *State) string {
		if st.Step != StepConnect {
			return "only available on the connect step"
		}
		if token == "" {
			return "personal access token is required"
		}
		return ""
	}); err != nil {
		return err
	}

	user, err := s.conn.Connect(ctx, token)
	if err != nil {
		s.log.Warn("Connect failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.st.Connected = true
	s.st.AsanaUser = user.DisplayName()
	s.mu.Unlock()

	s.log.Info("Connected to Asana", zap.String("user", user.DisplayName()))
	return nil
}

// Disconnect removes the server-side token and resets the wizard
func (s *Session) Disconnect(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.guard("disconnect", func(st *State) string {
		if !st.Connected {
			return "not connected"
		}
		return ""
	}); err != nil {
		return err
	}

	if err := s.conn.Disconnect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.abandonPoll()
	s.resetFlow()
	s.st.Connected = false
	s.st.AsanaUser = ""
	s.st.History = nil
	s.enter(StepConnect)
	s.mu.Unlock()

	s.log.Info("Disconnected from Asana")
	return nil
}

// StartImport loads the workspace and client lists and moves to workspace selection
func (s *Session) StartImport(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.guard("start import", func(st *State) string {
		if st.Step != StepConnect {
			return "only available on the connect step"
		}
		if !st.Connected {
			return "connect to Asana first"
		}
		return ""
	}); err != nil {
		return err
	}

	var (
		source  []AsanaWorkspace
		local   []LocalWorkspace
		clients []LocalClient
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = s.conn.Workspaces(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		local, err = s.conn.LocalWorkspaces(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.conn.LocalClients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("Loading workspaces failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.resetFlow()
	s.st.SourceWorkspaces = source
	s.st.LocalWorkspaces = local
	s.st.LocalClients = clients
	s.enter(StepWorkspace)
	s.mu.Unlock()

	s.log.Info("Import started",
		zap.Int("source_workspaces", len(source)),
		zap.Int("local_workspaces", len(local)),
		zap.Int("local_clients", len(clients)))
	return nil
}

// SelectSourceWorkspace picks the Asana workspace; an empty gid clears it
func (s *Session) SelectSourceWorkspace(gid string) error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepWorkspace {
		return &GuardError{Action: "select source workspace", Step: s.st.Step, Reason: "only available on the workspace step"}
	}
	if gid == "" {
		s.st.SourceWorkspaceGID, s.st.SourceWorkspaceName = "", ""
		return nil
	}
	i := slices.IndexFunc(s.st.SourceWorkspaces, func(w AsanaWorkspace) bool { return w.GID == gid })
	if i < 0 {
		return &ValidationError{"asanaWorkspaceGid", "unknown workspace: " + gid}
	}
	s.st.SourceWorkspaceGID = gid
	s.st.SourceWorkspaceName = s.st.SourceWorkspaces[i].Name
	return nil
}

// SelectTargetWorkspace picks the tenant workspace; an empty id clears it
func (s *Session) SelectTargetWorkspace(id string) error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepWorkspace {
		return &GuardError{Action: "select target workspace", Step: s.st.Step, Reason: "only available on the workspace step"}
	}
	if id != "" && !slices.ContainsFunc(s.st.LocalWorkspaces, func(w LocalWorkspace) bool { return w.ID == id }) {
		return &ValidationError{"targetWorkspaceId", "unknown workspace: " + id}
	}
	s.st.TargetWorkspaceID = id
	return nil
}

// CanLoadProjects reports whether both workspaces are chosen
func (s *Session) CanLoadProjects() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canLoadProjects()
}

func (s *Session) canLoadProjects() bool {
	return s.st.Step == StepWorkspace && s.st.SourceWorkspaceGID != "" && s.st.TargetWorkspaceID != ""
}

// LoadProjects fetches the source workspace's projects and moves to selection
func (s *Session) LoadProjects(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	var gid string
	if err := s.guard("load projects", func(st *State) string {
		if st.Step != StepWorkspace {
			return "only available on the workspace step"
		}
		if st.SourceWorkspaceGID == "" || st.TargetWorkspaceID == "" {
			return "select both a source and a target workspace"
		}
		gid = st.SourceWorkspaceGID
		return ""
	}); err != nil {
		return err
	}

	projects, err := s.conn.Projects(ctx, gid)
	if err != nil {
		s.log.Warn("Loading projects failed", zap.String("workspace_gid", gid), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.st.Projects = projects
	s.st.SelectedProjectGIDs = nil
	s.enter(StepProjects)
	s.mu.Unlock()
	return nil
}

// SetSelectedProjects replaces the selection. Duplicates are dropped and
// order is kept.
func (s *Session) SetSelectedProjects(gids []string) error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepProjects {
		return &GuardError{Action: "select projects", Step: s.st.Step, Reason: "only available on the projects step"}
	}

	selected := make([]string, 0, len(gids))
	for _, gid := range gids {
		if !s.hasProject(gid) {
			return &ValidationError{"projectGids", "unknown project: " + gid}
		}
		if !slices.Contains(selected, gid) {
			selected = append(selected, gid)
		}
	}
	s.st.SelectedProjectGIDs = selected
	return nil
}

// ToggleProject flips one project's selection
func (s *Session) ToggleProject(gid string) error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepProjects {
		return &GuardError{Action: "toggle project", Step: s.st.Step, Reason: "only available on the projects step"}
	}
	if !s.hasProject(gid) {
		return &ValidationError{"projectGids", "unknown project: " + gid}
	}
	if i := slices.Index(s.st.SelectedProjectGIDs, gid); i >= 0 {
		s.st.SelectedProjectGIDs = slices.Delete(s.st.SelectedProjectGIDs, i, i+1)
	} else {
		s.st.SelectedProjectGIDs = append(s.st.SelectedProjectGIDs, gid)
	}
	return nil
}

func (s *Session) hasProject(gid string) bool {
	return slices.ContainsFunc(s.st.Projects, func(p AsanaProject) bool { return p.GID == gid })
}

// CanConfigureOptions reports whether at least one project is selected
func (s *Session) CanConfigureOptions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canConfigureOptions()
}

func (s *Session) canConfigureOptions() bool {
	return s.st.Step == StepProjects && len(s.st.SelectedProjectGIDs) > 0
}

// ConfigureOptions moves to the options step
func (s *Session) ConfigureOptions() error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepProjects {
		return &GuardError{Action: "configure options", Step: s.st.Step, Reason: "only available on the projects step"}
	}
	if len(s.st.SelectedProjectGIDs) == 0 {
		return &GuardError{Action: "configure options", Step: s.st.Step, Reason: "select at least one project"}
	}
	s.enter(StepOptions)
	return nil
}

// SetOptions replaces the import options
func (s *Session) SetOptions(opts ImportOptions) error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepOptions {
		return &GuardError{Action: "set options", Step: s.st.Step, Reason: "only available on the options step"}
	}
	if err := ValidateOptions(&opts); err != nil {
		return err
	}
	if opts.TargetClientID != "" && !slices.ContainsFunc(s.st.LocalClients, func(c LocalClient) bool { return c.ID == opts.TargetClientID }) {
		return &ValidationError{"targetClientId", "unknown client: " + opts.TargetClientID}
	}
	s.st.Options = opts
	return nil
}

// Request builds the import request from the current selections
func (s *Session) Request() ImportRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request()
}

func (s *Session) request() ImportRequest {
	return ImportRequest{
		AsanaWorkspaceGID:  s.st.SourceWorkspaceGID,
		AsanaWorkspaceName: s.st.SourceWorkspaceName,
		ProjectGIDs:        slices.Clone(s.st.SelectedProjectGIDs),
		TargetWorkspaceID:  s.st.TargetWorkspaceID,
		Options:            s.st.Options,
	}
}

// Validate runs the server dry run. It may be repeated from the validate
// step; nothing is written by it.
func (s *Session) Validate(ctx context.Context) (*ValidationResult, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	var req ImportRequest
	if err := s.guard("validate", func(st *State) string {
		if st.Step != StepOptions && st.Step != StepValidate {
			return "only available on the options or validate step"
		}
		req = s.request()
		return ""
	}); err != nil {
		return nil, err
	}
	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}

	result, err := s.conn.Validate(ctx, req)
	if err != nil {
		s.log.Warn("Validation failed", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.st.Validation = result
	s.enter(StepValidate)
	s.mu.Unlock()

	totals := result.Counts.Totals()
	s.log.Info("Validation complete",
		zap.Int("create", totals.Create),
		zap.Int("update", totals.Update),
		zap.Int("skip", totals.Skip),
		zap.Int("error", totals.Error),
		zap.Int("errors", len(result.Errors)))

	out := *result
	return &out, nil
}

// Execute starts the import and begins polling its run in the background
func (s *Session) Execute(ctx context.Context) (string, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	var req ImportRequest
	if err := s.guard("execute", func(st *State) string {
		if st.Step != StepValidate {
			return "only available on the validate step"
		}
		if st.Validation == nil {
			return "run a successful validation first"
		}
		req = s.request()
		return ""
	}); err != nil {
		return "", err
	}

	runID, err := s.conn.Execute(ctx, req)
	if err != nil {
		s.log.Warn("Execute failed", zap.Error(err))
		return "", err
	}

	s.mu.Lock()
	s.st.RunID = runID
	s.st.Run = nil
	s.st.PollError = ""
	s.pollErr = nil
	s.enter(StepExecute)
	s.startPoll(runID)
	s.mu.Unlock()

	s.log.Info("Import executing", zap.String("run_id", runID), zap.Int("projects", len(req.ProjectGIDs)))
	return runID, nil
}

// Wait blocks until the current poll finishes or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.pollDone
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShowHistory loads past runs. An in-flight poll is abandoned; the run
// keeps going on the server and shows up in the history list.
func (s *Session) ShowHistory(ctx context.Context) ([]ImportRun, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	runs, err := s.conn.Runs(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.abandonPoll()
	s.st.History = runs
	s.enter(StepHistory)
	s.mu.Unlock()

	return slices.Clone(runs), nil
}

// Back leaves history for a fresh connect step
func (s *Session) Back() error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepHistory {
		return &GuardError{Action: "back", Step: s.st.Step, Reason: "only available from history"}
	}
	s.resetFlow()
	s.enter(StepConnect)
	return nil
}

// NewImport resets a finished wizard; the connection is kept
func (s *Session) NewImport() error {
	_, done, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Step != StepSummary {
		return &GuardError{Action: "new import", Step: s.st.Step, Reason: "only available on the summary step"}
	}
	s.resetFlow()
	s.enter(StepConnect)
	return nil
}

// Close cancels polling and waits for it to stop. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.polls.Wait()
	s.log.Debug("Session closed")
}

// begin serializes an action and ties ctx to the session lifetime
func (s *Session) begin(ctx context.Context) (context.Context, func(), error) {
	s.opMu.Lock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.opMu.Unlock()
		return nil, nil, ErrSessionClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
		s.opMu.Unlock()
	}, nil
}

// guard evaluates check under the state lock; a non-empty reason rejects
func (s *Session) guard(action string, check func(st *State) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason := check(&s.st); reason != "" {
		return &GuardError{Action: action, Step: s.st.Step, Reason: reason}
	}
	return nil
}

// enter moves to step and appends it to the visited trail. Caller holds mu.
func (s *Session) enter(step Step) {
	s.st.Step = step
	if n := len(s.st.Visited); n == 0 || s.st.Visited[n-1] != step {
		s.st.Visited = append(s.st.Visited, step)
	}
}

// resetFlow clears everything chosen after connect. Caller holds mu.
func (s *Session) resetFlow() {
	s.abandonPoll()
	s.st.SourceWorkspaces = nil
	s.st.LocalWorkspaces = nil
	s.st.LocalClients = nil
	s.st.SourceWorkspaceGID = ""
	s.st.SourceWorkspaceName = ""
	s.st.TargetWorkspaceID = ""
	s.st.Projects = nil
	s.st.SelectedProjectGIDs = nil
	s.st.Options = DefaultOptions()
	s.st.Validation = nil
	s.st.RunID = ""
	s.st.Run = nil
	s.st.PollError = ""
	s.pollErr = nil
}

// abandonPoll stops the current poll and makes its late results stale. Caller holds mu.
func (s *Session) abandonPoll() {
	s.gen++
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.st.Polling = false
}

// startPoll launches the poll task. Caller holds mu.
func (s *Session) startPoll(runID string) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	gen := s.gen

	s.pollCancel = cancel
	s.pollDone = done
	s.st.Polling = true
	s.polls.Add(1)

	go func() {
		defer s.polls.Done()
		defer close(done)
		defer cancel()

		run, err := s.poller.Poll(ctx, s.conn, runID, func(r *ImportRun) {
			s.mu.Lock()
			if s.gen == gen {
				s.st.Run = r
			}
			s.mu.Unlock()
		})
		s.finishPoll(gen, runID, run, err)
	}()
}

func (s *Session) finishPoll(gen uint64, runID string, run *ImportRun, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.st.Polling = false
	s.pollCancel = nil
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.pollErr = err
			s.st.PollError = err.Error()
			s.log.Error("Polling stopped", zap.String("run_id", runID), zap.Error(err))
		}
		s.mu.Unlock()
		return
	}
	s.st.Run = run
	s.enter(StepSummary)
	s.mu.Unlock()

	if s.sink == nil {
		return
	}
	ctx := context.WithoutCancel(s.ctx)
	record := func() error { return s.sink.Record(ctx, run, models.OriginWizard, s.id) }
	if err := retryWithBackoff(ctx, record, 3, s.log); err != nil {
		s.log.Error("Failed to record run", zap.String("run_id", runID), zap.Error(err))
	}
}
