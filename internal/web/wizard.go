package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-console/internal/services/asana"
)

// session resolves :id or writes the error response
func (s *Server) session(c *gin.Context) (*asana.Session, bool) {
	session, err := s.app.Sessions().Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

// respondState writes the session snapshot, or the error if err is set
func respondState(c *gin.Context, session *asana.Session, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (s *Server) createSession(c *gin.Context) {
	session, err := s.app.NewWizard()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := session.Refresh(c.Request.Context()); err != nil {
		// the session stays usable; the UI shows the disconnected step
		logger(c).Warn("Initial connection status failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) getSession(c *gin.Context) {
	if session, ok := s.session(c); ok {
		c.JSON(http.StatusOK, session.Snapshot())
	}
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.app.Sessions().Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) refresh(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.Refresh(c.Request.Context()))
	}
}

func (s *Server) testConnection(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	result, err := session.TestConnection(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) connect(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	respondState(c, session, session.Connect(c.Request.Context(), body.Token))
}

func (s *Server) disconnect(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.Disconnect(c.Request.Context()))
	}
}

func (s *Server) startImport(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.StartImport(c.Request.Context()))
	}
}

func (s *Server) selectSourceWorkspace(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var body struct {
		GID string `json:"gid"`
	}
	if !bindJSON(c, &body) {
		return
	}
	respondState(c, session, session.SelectSourceWorkspace(body.GID))
}

func (s *Server) selectTargetWorkspace(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var body struct {
		ID string `json:"id"`
	}
	if !bindJSON(c, &body) {
		return
	}
	respondState(c, session, session.SelectTargetWorkspace(body.ID))
}

func (s *Server) loadProjects(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.LoadProjects(c.Request.Context()))
	}
}

func (s *Server) setSelectedProjects(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var body struct {
		GIDs []string `json:"gids"`
	}
	if !bindJSON(c, &body) {
		return
	}
	respondState(c, session, session.SetSelectedProjects(body.GIDs))
}

func (s *Server) toggleProject(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.ToggleProject(c.Param("gid")))
	}
}

func (s *Server) configureOptions(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.ConfigureOptions())
	}
}

func (s *Server) setOptions(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var opts asana.ImportOptions
	if !bindJSON(c, &opts) {
		return
	}
	respondState(c, session, session.SetOptions(opts))
}

func (s *Server) validate(c *gin.Context) {
	if session, ok := s.session(c); ok {
		_, err := session.Validate(c.Request.Context())
		respondState(c, session, err)
	}
}

func (s *Server) execute(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	if _, err := session.Execute(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, session.Snapshot())
}

func (s *Server) showHistory(c *gin.Context) {
	if session, ok := s.session(c); ok {
		_, err := session.ShowHistory(c.Request.Context())
		respondState(c, session, err)
	}
}

func (s *Server) back(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.Back())
	}
}

func (s *Server) newImport(c *gin.Context) {
	if session, ok := s.session(c); ok {
		respondState(c, session, session.NewImport())
	}
}
