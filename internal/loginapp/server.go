// Package loginapp is the demo login application the browser scenarios run
// against: a form login with a failed attempt lockout, inactive accounts,
// inactivity timeout and a remember-me cookie.
package loginapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robotomize/loginsuite/internal/config"
)

const ctxSession = "loginapp.session"

type Options struct {
	Addr           string
	Secret         string
	SessionTimeout time.Duration
	RememberFor    time.Duration
	FailureDelay   time.Duration
	MaxAttempts    int
	// AllowReset exposes POST /testing/reset, which restores the seed
	// accounts between suite runs.
	AllowReset bool
	Accounts   []Account
	BcryptCost int
}

// OptionsFromConfig maps the app section of the config, loading the seed
// file when one is set.
func OptionsFromConfig(cfg config.AppConfig) (Options, error) {
	opts := Options{
		Addr:           cfg.Addr,
		Secret:         cfg.Secret,
		SessionTimeout: cfg.SessionTimeout,
		RememberFor:    cfg.RememberFor,
		FailureDelay:   cfg.FailureDelay,
		MaxAttempts:    cfg.MaxAttempts,
		AllowReset:     cfg.AllowReset,
		Accounts:       DefaultAccounts(),
	}

	if cfg.SeedFile != "" {
		accounts, err := LoadAccounts(cfg.SeedFile)
		if err != nil {
			return Options{}, err
		}
		opts.Accounts = accounts
	}

	return opts, nil
}

type Server struct {
	opts     Options
	store    *Store
	sessions *Sessions
	pages    *renderer
	metrics  *metrics
	registry *prometheus.Registry
	logger   *zap.Logger
	engine   *gin.Engine
}

func New(opts Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 5 * time.Minute
	}

	if opts.RememberFor <= 0 {
		opts.RememberFor = 30 * 24 * time.Hour
	}

	storeOpts := []StoreOption{WithMaxAttempts(opts.MaxAttempts), WithFailureDelay(opts.FailureDelay)}
	if opts.BcryptCost > 0 {
		storeOpts = append(storeOpts, WithBcryptCost(opts.BcryptCost))
	}

	store, err := NewStore(opts.Accounts, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("loginapp.NewStore: %w", err)
	}

	sessions, err := NewSessions(opts.Secret, opts.SessionTimeout, opts.RememberFor)
	if err != nil {
		return nil, err
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		opts:     opts,
		store:    store,
		sessions: sessions,
		pages:    pages,
		metrics:  newMetrics(registry),
		registry: registry,
		logger:   logger,
	}
	s.engine = s.routes()

	return s, nil
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.metrics.middleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	if s.opts.AllowReset {
		r.POST("/testing/reset", s.handleReset)
	}

	app := r.Group("/", s.sessionMiddleware)
	app.GET("/", s.handleHome)
	app.GET("/login", s.handleLoginForm)
	app.POST("/login", s.handleLogin)
	app.GET("/logout", s.handleLogout)
	app.GET("/reset_password", s.handleResetPassword)

	r.NoRoute(
		func(c *gin.Context) {
			s.pages.HTML(c, http.StatusNotFound, pageNotFound, pongo2.Context{"path": c.Request.URL.Path})
		},
	)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		s.logger.Debug("request", fields...)
	}
}

func setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", false, true)
}

func (s *Server) setSession(c *gin.Context, sess Session) error {
	raw, err := s.sessions.Issue(sess)
	if err != nil {
		return err
	}

	setCookie(c, SessionCookie, raw, 0)
	c.Set(ctxSession, sess)

	return nil
}

func currentSession(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return Session{}, false
	}

	sess, ok := v.(Session)

	return sess, ok
}

// sessionMiddleware loads the session cookie, sliding its inactivity window,
// and falls back to the remember-me cookie. An idle session is dropped and
// the request redirected to the login form.
func (s *Server) sessionMiddleware(c *gin.Context) {
	if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
		sess, err := s.sessions.Parse(raw)
		switch {
		case err == nil:
			if err = s.setSession(c, sess); err != nil {
				_ = c.Error(err)
			}
		case errors.Is(err, ErrSessionExpired):
			setCookie(c, SessionCookie, "", -1)
			addFlash(c, MsgTimedOut)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		default:
			setCookie(c, SessionCookie, "", -1)
		}
	}

	if _, ok := currentSession(c); !ok {
		if raw, err := c.Cookie(RememberCookie); err == nil && raw != "" {
			email, err := s.sessions.Remembered(raw)
			if err == nil {
				if role, active := s.store.Active(email); active {
					if err = s.setSession(c, Session{Email: email, Role: role}); err != nil {
						_ = c.Error(err)
					}
				}
			}
		}
	}

	c.Next()
}

func (s *Server) handleHome(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	s.pages.HTML(c, http.StatusOK, pageDashboard, pongo2.Context{"user": sess, "flashes": takeFlashes(c)})
}

func (s *Server) handleLoginForm(c *gin.Context) {
	s.pages.HTML(c, http.StatusOK, pageLogin, pongo2.Context{"flashes": takeFlashes(c)})
}

func (s *Server) handleLogin(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	_, remember := c.GetPostForm("remember")

	login := s.store.Authenticate(c.Request.Context(), email, password)
	s.metrics.logins.WithLabelValues(login.Outcome.String()).Inc()
	s.logger.Info("login attempt", zap.String("email", login.Email), zap.Stringer("outcome", login.Outcome))

	switch login.Outcome {
	case OutcomeOK:
		if login.Replaced {
			addFlash(c, MsgReplaced)
		}

		if err := s.setSession(c, Session{Email: login.Email, Role: login.Role, Token: login.Token}); err != nil {
			_ = c.Error(err)
			c.String(http.StatusInternalServerError, "session error")
			return
		}

		if remember {
			raw, err := s.sessions.Remember(login.Email)
			if err != nil {
				_ = c.Error(err)
			} else {
				setCookie(c, RememberCookie, raw, int(s.sessions.RememberFor().Seconds()))
			}
		}

		c.Redirect(http.StatusFound, "/")
	case OutcomeInactive, OutcomeLockedOut:
		addFlash(c, login.Outcome.Message())
		c.Redirect(http.StatusFound, "/login")
	default:
		addFlash(c, login.Outcome.Message())
		s.pages.HTML(c, http.StatusOK, pageLogin, pongo2.Context{"flashes": takeFlashes(c)})
	}
}

func (s *Server) handleLogout(c *gin.Context) {
	if sess, ok := currentSession(c); ok {
		s.store.Logout(sess.Email)
	}

	setCookie(c, SessionCookie, "", -1)
	setCookie(c, RememberCookie, "", -1)
	addFlash(c, MsgLoggedOut)
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) handleResetPassword(c *gin.Context) {
	addFlash(c, MsgResetPassword)
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.store.Reset(); err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}

	s.logger.Info("store reset to seed accounts")
	c.Status(http.StatusNoContent)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// ready, when set, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ready != nil {
		ready(ln.Addr().String())
	}
	s.logger.Info("login app listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http.Server.Serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http.Server.Shutdown: %w", err)
	}

	return nil
}
