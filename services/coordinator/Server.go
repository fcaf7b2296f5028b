package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ordishs/gocore"

	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

var coordinatorStat = gocore.NewStat("Coordinator")

// Server exposes the coordinator's operations over HTTP using the Echo
// framework.
//
// API Endpoints:
//   - GET  /alive: liveness check
//   - GET  /health: indexer reachability check
//   - POST /api/v1/session: build a transaction and open a session
//   - GET  /api/v1/session/:id/body: unsigned transaction hex
//   - GET  /api/v1/session/:id/witnesses: collected witnesses
//   - POST /api/v1/session/:id/witness: submit a witness blob
//   - GET  /api/v1/session/:id/status: signing progress
//   - POST /api/v1/session/:id/submit: assemble and submit
//   - POST /api/v1/reset: discard one session or all
//   - GET  /api/v1/script/summary: configured script analysis
type Server struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	coordinator *Coordinator
	e           *echo.Echo
	startTime   time.Time
}

// NewServer wires routes and middleware around an existing coordinator.
func NewServer(logger ulogger.Logger, tSettings *settings.Settings, co *Coordinator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if tSettings.Coordinator.EchoDebug {
		e.Debug = true
	}

	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	allowedOrigin := tSettings.Coordinator.AllowedOrigin
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return allowedOrigin == "*" || origin == allowedOrigin, nil
		},
		AllowMethods:  []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{echo.HeaderContentLength, echo.HeaderContentType},
		MaxAge:        86400,
	}))

	s := &Server{
		logger:      logger,
		settings:    tSettings,
		coordinator: co,
		e:           e,
		startTime:   time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Coordinator is alive. Uptime: %s\n", time.Since(s.startTime)))
	})

	e.GET("/health", s.handleHealth)

	apiGroup := e.Group("/api/v1")

	apiGroup.POST("/session", s.handleCreateSession)
	apiGroup.GET("/session/:id/body", s.handleGetBody)
	apiGroup.GET("/session/:id/witnesses", s.handleListWitnesses)
	apiGroup.POST("/session/:id/witness", s.handleSubmitWitness)
	apiGroup.GET("/session/:id/status", s.handleStatus)
	apiGroup.POST("/session/:id/submit", s.handleSubmit)
	apiGroup.POST("/reset", s.handleReset)
	apiGroup.GET("/script/summary", s.handleScriptSummary)

	if tSettings.StatsPrefix != "" {
		e.GET(tSettings.StatsPrefix+"stats", echo.WrapHandler(http.HandlerFunc(gocore.HandleStats)))
		e.GET(tSettings.StatsPrefix+"reset", echo.WrapHandler(http.HandlerFunc(gocore.ResetStats)))
	}

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.e.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("http shutdown: %v", err)
		}
	}()

	addr := s.settings.Coordinator.HTTPListenAddress
	s.logger.Infof("coordinator http listening on %s", addr)

	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.coordinator.gateway.Health(c.Request().Context()); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleCreateSession(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		coordinatorStat.NewStat("create_session").AddTime(start)
	}()

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, err)
	}

	resp, err := s.coordinator.CreateSession(c.Request().Context(), &req)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetBody(c echo.Context) error {
	resp, err := s.coordinator.GetBody(c.Param("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListWitnesses(c echo.Context) error {
	resp, err := s.coordinator.ListWitnesses(c.Param("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

type submitWitnessRequest struct {
	WitnessHex string `json:"witness_hex"`
	Signer     string `json:"signer,omitempty"`
}

func (s *Server) handleSubmitWitness(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		coordinatorStat.NewStat("submit_witness").AddTime(start)
	}()

	var req submitWitnessRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, err)
	}

	resp, err := s.coordinator.SubmitWitness(c.Param("id"), req.WitnessHex, req.Signer)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	resp, err := s.coordinator.Status(c.Param("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSubmit(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		coordinatorStat.NewStat("submit").AddTime(start)
	}()

	resp, err := s.coordinator.Submit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

type resetRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, err)
	}

	s.coordinator.Reset(req.SessionID)

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScriptSummary(c echo.Context) error {
	summary, err := s.coordinator.ScriptSummary()
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}
