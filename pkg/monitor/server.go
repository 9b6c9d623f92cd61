package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"digital.vasic.nback/pkg/logging"
	"digital.vasic.nback/pkg/metrics"
	"digital.vasic.nback/pkg/motion"
	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/task"
)

var (
	// ErrNoController is returned for commands sent to a
	// read-only monitor.
	ErrNoController = errors.New("monitor has no controller")

	// ErrUnknownCommand is returned for an unrecognised command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoRecorder is returned for motion commands when no
	// recorder is attached.
	ErrNoRecorder = errors.New("monitor has no motion recorder")
)

// Controller drives a run. *orchestrator.Orchestrator implements
// it.
type Controller interface {
	Start(ctx context.Context) (*task.Session, error)
	SubmitResponse() error
	Cancel() bool
	Advance(ctx context.Context, rating *int) (*task.Session, error)
	Restart() error
	ExitEarly()

	State() orchestrator.State
	Order() orchestrator.Order
	Index() int
	CurrentLevel() task.Level
	Participant() string
}

const clientBuffer = 64

type client struct {
	send chan []byte
	conn *websocket.Conn
}

// Server exposes the run over HTTP: a health check, a JSON
// dashboard, a server-sent event stream and a websocket display
// that streams events and accepts commands.
type Server struct {
	addr      string
	collector *EventCollector
	dashboard *DashboardData
	ctrl      Controller
	motion    *motion.Recorder
	metrics   *metrics.MemoryMetrics
	logger    logging.Logger
	runCtx    context.Context
	upgrader  websocket.Upgrader
	engine    *gin.Engine

	mu      sync.RWMutex
	clients map[*client]struct{}
	server  *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithController enables commands.
func WithController(c Controller) ServerOption {
	return func(s *Server) { s.ctrl = c }
}

// WithMotionRecorder accepts motion commands into r.
func WithMotionRecorder(r *motion.Recorder) ServerOption {
	return func(s *Server) { s.motion = r }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.MemoryMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request and connection logger.
func WithLogger(l logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithRunContext sets the context sessions started by commands
// run under. It must outlive individual requests.
func WithRunContext(ctx context.Context) ServerOption {
	return func(s *Server) { s.runCtx = ctx }
}

// NewServer creates a monitor server and subscribes it to
// collector.
func NewServer(
	addr string,
	collector *EventCollector,
	dashboard *DashboardData,
	opts ...ServerOption,
) *Server {
	s := &Server{
		addr:      addr,
		collector: collector,
		dashboard: dashboard,
		logger:    logging.NullLogger{},
		runCtx:    context.Background(),
		clients:   make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The display is served from other local origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	collector.OnEvent(s.onEvent)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/dashboard", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.dashboard.Snapshot())
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.collector.Stats())
	})
	r.GET("/metrics", func(c *gin.Context) {
		if s.metrics == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
			return
		}
		c.JSON(http.StatusOK, s.metrics.Snapshot())
	})
	r.GET("/events", s.handleSSE)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/state", func(c *gin.Context) {
		st, ok := s.runState()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrNoController.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})
	api.POST("/commands", s.handleCommand)
	return r
}

// requestLogger logs every request, as a gin middleware.
func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.StringField("method", c.Request.Method),
			logging.StringField("path", c.Request.URL.Path),
			logging.IntField("status", status),
			logging.DurationField("latency_ms", time.Since(start)),
		}
		switch {
		case status >= 500:
			log.Error("server error", fields...)
		case status >= 400:
			log.Warn("client error", fields...)
		default:
			log.Debug("request processed", fields...)
		}
	}
}

func (s *Server) runState() (*RunState, bool) {
	if s.ctrl == nil {
		return nil, false
	}
	return &RunState{
		State:       s.ctrl.State(),
		Order:       s.ctrl.Order(),
		Index:       s.ctrl.Index(),
		Level:       s.ctrl.CurrentLevel(),
		Participant: s.ctrl.Participant(),
	}, true
}

// Dispatch applies cmd to the controller and broadcasts the
// resulting run state.
func (s *Server) Dispatch(cmd Command) error {
	if cmd.Type == CommandMotion {
		return s.recordMotion(cmd.Motion)
	}
	if s.ctrl == nil {
		return ErrNoController
	}
	var err error
	switch cmd.Type {
	case CommandStart:
		_, err = s.ctrl.Start(s.runCtx)
	case CommandRespond:
		err = s.ctrl.SubmitResponse()
	case CommandCancel:
		if !s.ctrl.Cancel() {
			err = fmt.Errorf(
				"%w: no active session", orchestrator.ErrInvalidTransition,
			)
		}
	case CommandAdvance:
		_, err = s.ctrl.Advance(s.runCtx, cmd.Rating)
	case CommandRestart:
		if err = s.ctrl.Restart(); err == nil {
			s.dashboard.Reset()
		}
	case CommandExit:
		s.ctrl.ExitEarly()
		s.dashboard.Reset()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	if err != nil {
		return err
	}

	st, _ := s.runState()
	if st.State == orchestrator.StateComplete {
		s.dashboard.SetStatus(string(orchestrator.StateComplete))
	}
	s.broadcastMessage(Message{Kind: MessageState, State: st})
	return nil
}

// recordMotion stores a sample without broadcasting. Samples
// outside a session window are dropped silently.
func (s *Server) recordMotion(m *MotionSample) error {
	if s.motion == nil {
		return ErrNoRecorder
	}
	if m == nil {
		return fmt.Errorf("%w: motion command without sample", ErrUnknownCommand)
	}
	s.motion.Record(m.X, m.Y, m.Z)
	return nil
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command"})
		return
	}
	if err := s.Dispatch(cmd); err != nil {
		status := http.StatusConflict
		switch {
		case errors.Is(err, ErrNoController), errors.Is(err, ErrNoRecorder):
			status = http.StatusNotFound
		case errors.Is(err, ErrUnknownCommand):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if cmd.Type == CommandMotion {
		c.Status(http.StatusNoContent)
		return
	}
	st, _ := s.runState()
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSSE(c *gin.Context) {
	cl := s.register(nil)
	defer s.unregister(cl)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	if data, err := json.Marshal(s.dashboard.Snapshot()); err == nil {
		c.SSEvent("dashboard", string(data))
		c.Writer.Flush()
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case data, ok := <-cl.send:
			if !ok {
				return false
			}
			c.SSEvent("message", string(data))
			return true
		}
	})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.ErrorField(err))
		return
	}
	cl := s.register(conn)
	s.logger.Debug("display connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range cl.send {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}()

	if st, ok := s.runState(); ok {
		s.sendTo(cl, Message{Kind: MessageState, State: st})
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if err := s.Dispatch(cmd); err != nil {
			s.logger.Warn("command rejected",
				logging.StringField("command", string(cmd.Type)),
				logging.ErrorField(err),
			)
			s.sendTo(cl, Message{Kind: MessageError, Error: err.Error()})
		}
	}

	s.unregister(cl)
	<-done
	conn.Close()
	s.logger.Debug("display disconnected")
}

func (s *Server) register(conn *websocket.Conn) *client {
	cl := &client{send: make(chan []byte, clientBuffer), conn: conn}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	s.mu.Unlock()
	return cl
}

func (s *Server) unregister(cl *client) {
	s.mu.Lock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		close(cl.send)
	}
	s.mu.Unlock()
}

// closeClients disconnects every display and event stream.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		if cl.conn != nil {
			cl.conn.Close()
		}
		delete(s.clients, cl)
		close(cl.send)
	}
}

func (s *Server) onEvent(ev task.Event) {
	s.dashboard.UpdateFromEvent(ev)
	switch ev.Type {
	case task.EventSessionStarted, task.EventSessionFinished, task.EventSessionCancelled:
		s.logger.Debug("display "+string(ev.Type),
			logging.SessionField(ev.SessionID),
			logging.LevelField(ev.Level),
		)
	}
	s.broadcastMessage(Message{Kind: MessageEvent, Event: &ev})
}

func (s *Server) broadcastMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for cl := range s.clients {
		select {
		case cl.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (s *Server) sendTo(cl *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[cl]; !ok {
		return
	}
	select {
	case cl.send <- data:
	default:
	}
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.closeClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	s.closeClients()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
