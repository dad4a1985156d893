package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tenant-console/internal/app"
	"tenant-console/internal/services/asana"
	"tenant-console/internal/services/comments"
	"tenant-console/internal/services/csvimport"
	"tenant-console/internal/services/scheduler"
)

const maxUploadBytes = 10 << 20

// ====================================================================================
// Runs
// ====================================================================================

func (s *Server) listRuns(c *gin.Context) {
	tenantID, err := s.app.TenantID()
	if err != nil {
		respondError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := s.app.Recorder(tenantID).ListRecords(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

// errorReport serves a run's error log as CSV. Recorded runs are served
// locally; anything else is read from the server.
func (s *Server) errorReport(c *gin.Context) {
	tenantID, err := s.app.TenantID()
	if err != nil {
		respondError(c, err)
		return
	}
	runID := c.Param("runId")
	ctx := c.Request.Context()

	run, err := s.app.Recorder(tenantID).Get(ctx, runID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		run, err = s.app.Connector(tenantID).Run(ctx, runID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, asana.ErrorReportFilename(run.ID)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(asana.ErrorReportCSV(run.ErrorLog)))
}

// ====================================================================================
// CSV users import
// ====================================================================================

func (s *Server) usersTemplate(c *gin.Context) {
	schema := csvimport.UsersSchema()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, schema.TemplateFilename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(schema.Template()))
}

// upload returns the CSV body, either a multipart "file" field or the raw body
func upload(c *gin.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return fh.Open()
	}
	return http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes), nil
}

func parseMode(c *gin.Context) (csvimport.ParseMode, error) {
	mode, err := csvimport.ParseModeFromString(c.DefaultQuery("mode", csvimport.Naive.String()))
	if err != nil {
		return mode, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return mode, nil
}

func (s *Server) usersPanel(c *gin.Context) (*csvimport.Panel, error) {
	mode, err := parseMode(c)
	if err != nil {
		return nil, err
	}
	tenantID, err := s.app.TenantID()
	if err != nil {
		return nil, err
	}
	return csvimport.NewPanel(csvimport.UsersSchema(), mode, csvimport.UsersImporter(s.app.Client(), tenantID)), nil
}

func (s *Server) loadUpload(c *gin.Context, panel *csvimport.Panel) ([]csvimport.Row, error) {
	body, err := upload(c)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return panel.Load(body)
}

func (s *Server) previewUsers(c *gin.Context) {
	panel, err := s.usersPanel(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := s.loadUpload(c, panel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (s *Server) importUsers(c *gin.Context) {
	panel, err := s.usersPanel(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.loadUpload(c, panel); err != nil {
		respondError(c, err)
		return
	}

	opts := csvimport.Options{
		SkipExisting: c.DefaultQuery("skipExisting", "true") == "true",
		SendInvites:  c.Query("sendInvites") == "true",
		DefaultRole:  c.Query("defaultRole"),
	}
	result, err := panel.Submit(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ====================================================================================
// Comments
// ====================================================================================

type commentBody struct {
	Content    string `json:"content"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
}

func (s *Server) listComments(c *gin.Context) {
	list, err := s.app.Comments().List(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list})
}

func (s *Server) addComment(c *gin.Context) {
	var body commentBody
	if !bindJSON(c, &body) {
		return
	}
	author := comments.Author{ID: body.AuthorID, Name: body.AuthorName}
	comment, err := s.app.Comments().Add(c.Request.Context(), c.Param("taskId"), body.Content, author)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) updateComment(c *gin.Context) {
	var body commentBody
	if !bindJSON(c, &body) {
		return
	}
	comment, err := s.app.Comments().Update(c.Request.Context(), c.Param("taskId"), c.Param("commentId"), body.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (s *Server) deleteComment(c *gin.Context) {
	if err := s.app.Comments().Delete(c.Request.Context(), c.Param("taskId"), c.Param("commentId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ====================================================================================
// Panels
// ====================================================================================

func (s *Server) panelState(c *gin.Context) {
	panels := s.app.Panels()
	c.JSON(http.StatusOK, gin.H{
		"locked": panels.Locked(),
		"depth":  panels.Depth(),
		"names":  panels.Names(),
	})
}

func (s *Server) openPanel(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	handle := s.locks.open(body.Name)
	c.JSON(http.StatusCreated, gin.H{"handle": handle, "locked": s.app.Panels().Locked()})
}

func (s *Server) closePanel(c *gin.Context) {
	if err := s.locks.close(c.Param("handle")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": s.app.Panels().Locked()})
}

// ====================================================================================
// Schedules
// ====================================================================================

func (s *Server) listSchedules(c *gin.Context) {
	jobs, err := s.app.Scheduler().ListJobs()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) upsertSchedule(c *gin.Context) {
	var req scheduler.UpsertJobRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TenantID == "" {
		req.TenantID, _ = s.app.TenantID()
	}
	id, err := s.app.Scheduler().UpsertJob(req)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.app.Scheduler().DeleteJob(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) runSchedule(c *gin.Context) {
	run, err := s.app.Scheduler().RunNow(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ====================================================================================
// Profiles
// ====================================================================================

func (s *Server) listProfiles(c *gin.Context) {
	profiles, err := s.app.ListProfiles()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (s *Server) createProfile(c *gin.Context) {
	var req app.ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := s.app.CreateProfile(req)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req app.ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := s.app.UpdateProfile(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) deleteProfile(c *gin.Context) {
	if err := s.app.DeleteProfile(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) selectProfile(c *gin.Context) {
	if err := s.app.SelectProfile(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	logger(c).Info("Profile selected", zap.String("profile", c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"selected": c.Param("id")})
}
