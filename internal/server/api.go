package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/metrics"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/version"
)

// errorResponse is the body of every non-2xx API reply.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status              string       `json:"status"`
	LastFrameAgeSeconds *float64     `json:"last_frame_age_seconds"`
	WebSocketClients    int          `json:"websocket_clients"`
	Build               version.Info `json:"build"`
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.handleHealth)
	if s.config.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.config.Registry)))
	}

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.GET("/traits", s.handleTraits)
	api.POST("/control", s.handleControl)

	r.GET("/ws", s.handleWebSocket)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:           "ok",
		WebSocketClients: s.ActiveClients(),
		Build:            version.Get(),
	}
	if age, ok := s.ctrl.LastFrameAge(); ok {
		secs := age.Seconds()
		resp.LastFrameAgeSeconds = &secs
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.State())
}

func (s *Server) handleTraits(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Traits())
}

func (s *Server) handleControl(c *gin.Context) {
	var req protocol.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	state, err := s.control(req)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, errInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, errRateLimited):
			status = http.StatusTooManyRequests
		}
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

var (
	errInvalidRequest = errors.New("invalid request")
	errRateLimited    = errors.New("too many control requests")
)

// control validates req against the traits and hands it to the controller.
// Shared by the REST and WebSocket paths.
func (s *Server) control(req protocol.Request) (climate.State, error) {
	traits := s.ctrl.Traits()
	if err := validateRequest(req, traits.MinTemperature, traits.MaxTemperature); err != nil {
		return climate.State{}, err
	}
	if s.limiter != nil && !s.limiter.Allow() {
		logging.Warn("Control request rate limited", zap.Stringer("request", req))
		return climate.State{}, errRateLimited
	}
	state, err := s.ctrl.Control(req)
	if err != nil {
		logging.Error("Control request failed", zap.Error(err))
		return climate.State{}, err
	}
	return state, nil
}

func validateRequest(req protocol.Request, minTemp, maxTemp int) error {
	if req.TargetTemperature != nil {
		t := *req.TargetTemperature
		if t < minTemp || t > maxTemp {
			return fmt.Errorf("%w: target_temperature %d outside %d..%d", errInvalidRequest, t, minTemp, maxTemp)
		}
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("remote_addr", c.ClientIP()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
