package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-console/internal/app"
	"tenant-console/internal/logging"
)

// Server exposes the console backend to a browser UI over HTTP
type Server struct {
	app    *app.App
	router *gin.Engine
	locks  *lockTable
	log    *zap.Logger
}

// NewServer builds the router over app
func NewServer(a *app.App) *Server {
	s := &Server{
		app:   a,
		locks: newLockTable(a.Panels()),
		log:   logging.Named("web"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.closeSession)
		sessions.POST("/:id/refresh", s.refresh)
		sessions.POST("/:id/test", s.testConnection)
		sessions.POST("/:id/connect", s.connect)
		sessions.POST("/:id/disconnect", s.disconnect)
		sessions.POST("/:id/start", s.startImport)
		sessions.POST("/:id/source-workspace", s.selectSourceWorkspace)
		sessions.POST("/:id/target-workspace", s.selectTargetWorkspace)
		sessions.POST("/:id/load-projects", s.loadProjects)
		sessions.PUT("/:id/projects", s.setSelectedProjects)
		sessions.POST("/:id/projects/:gid/toggle", s.toggleProject)
		sessions.POST("/:id/configure-options", s.configureOptions)
		sessions.PUT("/:id/options", s.setOptions)
		sessions.POST("/:id/validate", s.validate)
		sessions.POST("/:id/execute", s.execute)
		sessions.POST("/:id/history", s.showHistory)
		sessions.POST("/:id/back", s.back)
		sessions.POST("/:id/new-import", s.newImport)
	}

	r.GET("/runs", s.listRuns)
	r.GET("/runs/:runId/error-report.csv", s.errorReport)

	r.GET("/csv/users/template", s.usersTemplate)
	r.POST("/csv/users/preview", s.previewUsers)
	r.POST("/csv/users/import", s.importUsers)

	tasks := r.Group("/tasks/:taskId/comments")
	{
		tasks.GET("", s.listComments)
		tasks.POST("", s.addComment)
		tasks.PUT("/:commentId", s.updateComment)
		tasks.DELETE("/:commentId", s.deleteComment)
	}

	r.GET("/ui/panels", s.panelState)
	r.POST("/ui/panels", s.openPanel)
	r.DELETE("/ui/panels/:handle", s.closePanel)

	schedules := r.Group("/schedules")
	{
		schedules.GET("", s.listSchedules)
		schedules.POST("", s.upsertSchedule)
		schedules.DELETE("/:id", s.deleteSchedule)
		schedules.POST("/:id/run", s.runSchedule)
	}

	profiles := r.Group("/profiles")
	{
		profiles.GET("", s.listProfiles)
		profiles.POST("", s.createProfile)
		profiles.PUT("/:id", s.updateProfile)
		profiles.DELETE("/:id", s.deleteProfile)
		profiles.POST("/:id/select", s.selectProfile)
	}

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP bridge listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("HTTP bridge shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
