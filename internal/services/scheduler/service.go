package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tenant-console/internal/logging"
	"tenant-console/internal/models"
	"tenant-console/internal/services/asana"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Service runs recurring Asana imports
type Service struct {
	db     *gorm.DB
	ctx    context.Context
	cron   *cron.Cron
	jobs   map[string]cron.EntryID // job id -> cron entry id
	jobsMu sync.RWMutex
	runner ImportRunner
	log    *zap.Logger
}

// NewService creates a scheduler; ctx bounds every fired import
func NewService(ctx context.Context, db *gorm.DB, runner ImportRunner) *Service {
	// Seconds are optional; a job still running is not fired again
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Service{
		db:     db,
		ctx:    ctx,
		cron:   c,
		jobs:   make(map[string]cron.EntryID),
		runner: runner,
		log:    logging.Named("scheduler"),
	}
}

// Start begins the cron loop and loads enabled jobs from the database
func (s *Service) Start() error {
	s.cron.Start()

	var jobs []models.ScheduledImport
	if err := s.db.Where("enabled = ?", true).Find(&jobs).Error; err != nil {
		return fmt.Errorf("failed to load scheduled imports: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		if err := s.scheduleJob(job); err != nil {
			s.log.Warn("Failed to schedule import", zap.String("name", job.Name), zap.String("id", job.ID), zap.Error(err))
			continue
		}
		s.log.Info("Scheduled import", zap.String("name", job.Name), zap.String("cron", job.Cron), zap.String("timezone", job.Timezone))
	}

	s.log.Info("Scheduler started", zap.Int("enabled_jobs", len(jobs)))
	return nil
}

// Stop waits for running imports and stops the cron loop
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info("Scheduler stopped")
	}
}

// ListJobs retrieves all scheduled imports, newest first
func (s *Service) ListJobs() ([]JobListResponse, error) {
	var jobs []models.ScheduledImport
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	responses := make([]JobListResponse, len(jobs))
	for i := range jobs {
		responses[i] = toJobListResponse(&jobs[i])
	}
	return responses, nil
}

// ScheduledEntries is the number of jobs registered with cron
func (s *Service) ScheduledEntries() int {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	return len(s.jobs)
}

// UpsertJob creates or updates a scheduled import, keyed by name
func (s *Service) UpsertJob(req UpsertJobRequest) (string, error) {
	if req.Name == "" || req.TenantID == "" || req.Cron == "" {
		return "", fmt.Errorf("name, tenant_id, and cron are required")
	}

	normalizedCron, err := normalizeCron(req.Cron)
	if err != nil {
		return "", err
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", req.Timezone, err)
	}
	if err := asana.ValidateRequest(&req.Request); err != nil {
		return "", err
	}
	payload, err := json.Marshal(req.Request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var job models.ScheduledImport
	result := s.db.Where("name = ?", req.Name).First(&job)
	isNew := errors.Is(result.Error, gorm.ErrRecordNotFound)
	if result.Error != nil && !isNew {
		return "", fmt.Errorf("failed to query job: %w", result.Error)
	}
	if isNew {
		job = models.ScheduledImport{ID: uuid.New().String(), Name: req.Name}
	}

	job.TenantID = req.TenantID
	job.Cron = normalizedCron
	job.Timezone = req.Timezone
	job.Enabled = req.Enabled
	job.Payload = string(payload)

	schedule, err := cronParser.Parse(cronSpec(&job))
	if err != nil {
		return "", fmt.Errorf("failed to parse cron for next run: %w", err)
	}
	nextRun := schedule.Next(time.Now())
	job.NextRunAt = &nextRun

	if isNew {
		err = s.db.Create(&job).Error
	} else {
		err = s.db.Save(&job).Error
	}
	if err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.rescheduleJob(job.ID); err != nil {
		return "", fmt.Errorf("failed to reschedule job: %w", err)
	}
	return job.ID, nil
}

// DeleteJob removes a scheduled import
func (s *Service) DeleteJob(jobID string) error {
	s.unschedule(jobID)

	if err := s.db.Delete(&models.ScheduledImport{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// RunNow fires a job immediately and waits for the run to finish
func (s *Service) RunNow(jobID string) (*asana.ImportRun, error) {
	return s.executeJob(jobID)
}

func (s *Service) scheduleJob(job *models.ScheduledImport) error {
	s.unschedule(job.ID)
	if !job.Enabled {
		return nil
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(cronSpec(job), func() {
		if _, err := s.executeJob(jobID); err != nil {
			s.log.Error("Scheduled import failed", zap.String("job_id", jobID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = entryID
	s.jobsMu.Unlock()
	return nil
}

func (s *Service) unschedule(jobID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if entryID, exists := s.jobs[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, jobID)
	}
}

// rescheduleJob reloads a job from the database and reschedules it
func (s *Service) rescheduleJob(jobID string) error {
	var job models.ScheduledImport
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.unschedule(jobID)
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	return s.scheduleJob(&job)
}

func (s *Service) executeJob(jobID string) (*asana.ImportRun, error) {
	var job models.ScheduledImport
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	log := s.log.With(zap.String("job_id", job.ID), zap.String("name", job.Name))
	log.Info("Executing scheduled import")

	now := time.Now()
	job.LastRunAt = &now
	if schedule, err := cronParser.Parse(cronSpec(&job)); err != nil {
		log.Warn("Failed to parse cron for next run", zap.Error(err))
	} else {
		next := schedule.Next(now)
		job.NextRunAt = &next
	}

	var req asana.ImportRequest
	run, err := func() (*asana.ImportRun, error) {
		if err := json.Unmarshal([]byte(job.Payload), &req); err != nil {
			return nil, fmt.Errorf("invalid job payload: %w", err)
		}
		return s.runner.RunImport(s.ctx, job.TenantID, req)
	}()

	job.LastError = ""
	if run != nil {
		job.LastRunID = run.ID
	}
	if err != nil {
		job.LastError = err.Error()
	}
	if saveErr := s.db.Save(&job).Error; saveErr != nil {
		log.Warn("Failed to update job run state", zap.Error(saveErr))
	}

	if err != nil {
		return nil, err
	}
	log.Info("Scheduled import finished", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	return run, nil
}

// cronSpec prefixes the job's timezone for robfig/cron
func cronSpec(job *models.ScheduledImport) string {
	if job.Timezone == "" || job.Timezone == "UTC" {
		return job.Cron
	}
	return "CRON_TZ=" + job.Timezone + " " + job.Cron
}

// normalizeCron converts 5-field cron to 6-field format by prepending seconds
// 5-field: "minute hour day month dow" (standard cron)
// 6-field: "second minute hour day month dow" (robfig/cron with WithSeconds)
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)
	fields := strings.Fields(cronExpr)

	if len(fields) == 6 {
		if _, err := cronParser.Parse(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 6-field cron expression: %w", err)
		}
		return cronExpr, nil
	}

	if len(fields) == 5 {
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 5-field cron expression: %w", err)
		}
		// Prepend seconds (0 = run at 0 seconds of the minute)
		return "0 " + strings.Join(fields, " "), nil
	}

	return "", fmt.Errorf("invalid cron expression: expected 5 or 6 fields, got %d", len(fields))
}

func toJobListResponse(job *models.ScheduledImport) JobListResponse {
	resp := JobListResponse{
		ID:        job.ID,
		Name:      job.Name,
		TenantID:  job.TenantID,
		Cron:      job.Cron,
		Timezone:  job.Timezone,
		Enabled:   job.Enabled,
		LastRunID: job.LastRunID,
		LastError: job.LastError,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}

	var req asana.ImportRequest
	if json.Unmarshal([]byte(job.Payload), &req) == nil {
		resp.Workspace = req.AsanaWorkspaceName
		resp.Projects = len(req.ProjectGIDs)
	}
	if job.LastRunAt != nil {
		lastRun := job.LastRunAt.Format(time.RFC3339)
		resp.LastRunAt = &lastRun
	}
	if job.NextRunAt != nil {
		nextRun := job.NextRunAt.Format(time.RFC3339)
		resp.NextRun = &nextRun
	}
	return resp
}
