// Package fakeapi is an in-process stand-in for the VagALI REST API used by
// tests. It implements the auth and current-profile endpoints with DRF-style
// error bodies and lets tests inject failures.
package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Prefix is where the API is mounted, like the deployed backend
const Prefix = "/api/v1/"

// Server is the fake backend. It implements http.Handler.
type Server struct {
	router     *gin.Engine
	db         *gorm.DB
	logger     zerolog.Logger
	tokenField string

	mu       sync.Mutex
	secret   []byte
	revoked  map[string]struct{}
	failures map[string][]failure
	calls    map[string]int
	resets   []string
}

type failure struct {
	status int
	body   any
	delay  time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithTokenField names the login response field carrying the token
// ("token", "auth_token" or "key"); empty omits the token entirely.
func WithTokenField(name string) Option {
	return func(s *Server) {
		s.tokenField = name
	}
}

var registerTagName sync.Once

// New creates a fake API backed by a private in-memory SQLite database
func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:     zerolog.Nop(),
		tokenField: "token",
		revoked:    map[string]struct{}{},
		failures:   map[string][]failure{},
		calls:      map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	s.secret = secret

	dsn := fmt.Sprintf("file:fakeapi-%s?mode=memory&cache=shared", ulid.Make().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// the in-memory database lives as long as this connection
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	s.db = db

	registerTagName.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "" || name == "-" {
					return fld.Name
				}
				return name
			})
		}
	})

	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.injectionMiddleware())

	api := s.router.Group(strings.TrimSuffix(Prefix, "/"))

	api.POST("/auth/login/", s.login)
	api.POST("/auth/password/reset/", s.passwordReset)

	authed := api.Group("")
	authed.Use(s.tokenAuthMiddleware())
	{
		authed.POST("/auth/logout/", s.logout)
		authed.GET("/accounts/perfil/me/", s.getMe)
		authed.PATCH("/accounts/perfil/me/", s.patchMe)
		authed.POST("/auth/users/set_password/", s.setPassword)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser seeds an account
func (s *Server) CreateUser(email, password string, professional bool) (*User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &User{Email: email, PasswordHash: hash, IsProfessional: professional}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// User returns the stored account for email
func (s *Server) User(email string) (*User, error) {
	var user User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// IssueToken returns a valid token for an existing account, as if it had
// logged in earlier
func (s *Server) IssueToken(email string) (string, error) {
	user, err := s.User(email)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()
	token, _, err := generateToken(secret, user.ID, user.Email)
	return token, err
}

// ExpireSessions invalidates every token issued so far
func (s *Server) ExpireSessions() error {
	secret, err := newSecret()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	return nil
}

// Fail makes the next request to method and path (relative to Prefix, e.g.
// "accounts/perfil/me/") answer status with body. Queued failures are
// consumed in order.
func (s *Server) Fail(method, path string, status int, body any) {
	s.queue(method, path, failure{status: status, body: body})
}

// Delay holds the next request to method and path for d before handling it
func (s *Server) Delay(method, path string, d time.Duration) {
	s.queue(method, path, failure{delay: d})
}

func (s *Server) queue(method, path string, f failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], f)
}

// Calls returns how many requests reached method and path
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// ResetRequests returns the e-mails a password reset was requested for
func (s *Server) ResetRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resets...)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Msg("HTTP request")
	}
}

func (s *Server) injectionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + strings.TrimPrefix(c.Request.URL.Path, Prefix)

		s.mu.Lock()
		s.calls[key]++
		var f *failure
		if queued := s.failures[key]; len(queued) > 0 {
			f = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if f == nil {
			c.Next()
			return
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if f.status == 0 {
			c.Next()
			return
		}
		if f.body == nil {
			c.AbortWithStatus(f.status)
			return
		}
		c.AbortWithStatusJSON(f.status, f.body)
	}
}

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errInvalidAuthFormat = errors.New("invalid authorization header format")
)

// extractToken accepts both the DRF "Token <key>" and "Bearer <jwt>" forms
func extractToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthHeader
	}
	for _, prefix := range []string{"Token ", "Bearer "} {
		if token, ok := strings.CutPrefix(header, prefix); ok && token != "" {
			return token, nil
		}
	}
	return "", errInvalidAuthFormat
}

func (s *Server) tokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c.GetHeader("Authorization"))
		if err != nil {
			s.logger.Debug().Err(err).Msg("Rejected request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		s.mu.Lock()
		secret := s.secret
		s.mu.Unlock()

		claims, err := validateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}

		s.mu.Lock()
		_, revoked := s.revoked[claims.ID]
		s.mu.Unlock()
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}

		var user User
		if err := s.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User not found."})
			return
		}

		c.Set("user", &user)
		c.Set("token_id", claims.ID)
		c.Next()
	}
}

func currentUser(c *gin.Context) *User {
	return c.MustGet("user").(*User)
}
