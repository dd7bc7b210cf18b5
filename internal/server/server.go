package server

import (
	"MedsetuPortal/internal/config"
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/screens"
	"MedsetuPortal/internal/server/handlers"
	"MedsetuPortal/internal/session"
	"MedsetuPortal/pkg/sl"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

//go:embed web
var webFS embed.FS

const sweepInterval = time.Minute

type Server struct {
	router   *gin.Engine
	sessions *session.Store
	events   events.Publisher
}

func New(cfg *config.Config, api screens.API, pub events.Publisher, logger *slog.Logger) (*Server, error) {
	op := "server.New()"

	if pub == nil {
		pub = events.Nop{}
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open static assets: %w", op, err)
	}

	s := &Server{
		router:   gin.New(),
		sessions: session.NewStore(api, pub, cfg.SessionTTL),
		events:   pub,
	}

	s.router.SetHTMLTemplate(tmpl)
	s.router.Use(handlers.RequestID(), handlers.Logger(logger), gin.Recovery())

	h := handlers.New(cfg.RenderWait)

	s.router.StaticFS("/static", http.FS(static))
	s.router.GET("/healthz", h.Health())
	s.router.NoRoute(h.NotFound())

	pages := s.router.Group("/", handlers.Session(s.sessions))

	//code translator
	pages.GET("/", h.Translator())
	pages.POST("/", h.Translate())

	//patient directory
	pages.GET("/patients", h.Patients())
	pages.GET("/patients/:id", h.Patient())
	pages.POST("/patients/:id/select", h.SelectPatient())

	//doctor directory
	pages.GET("/doctors", h.Doctors())

	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"inc":   func(i int) int { return i + 1 },
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(webFS, "web/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Sessions() *session.Store {
	return s.sessions
}

func (s *Server) Run(port string) {
	defer func() {
		if err := s.events.Close(); err != nil {
			slog.Error("failed to close lookup event publisher", sl.Error(err))
		}
	}()

	serv := http.Server{
		Addr:    port,
		Handler: s.router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.sessions.Run(ctx, sweepInterval)

	go func() {
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", sl.Error(err))
			os.Exit(1)
		}
	}()

	slog.Info("server is listening", slog.String("port", port))

	<-ctx.Done()

	slog.Info("start to finish server gracefully...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := serv.Shutdown(ctxTimeout); err != nil {
		slog.Error("failed to shutdown server gracefully", sl.Error(err))
	}

	slog.Info("finished server gracefully")
}
