// Package m2mstub is an in-memory stand-in for the OOINet M2M ingest and annotation
// endpoints, used for rehearsals and tests.
package m2mstub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ooi-datateam/ingestctl/internal/logx"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

const (
	IngestRequestPath = "/api/m2m/12589/ingestrequest"
	AnnotationPath    = "/api/m2m/12580/anno"
)

// Options configure a Server.
type Options struct {
	// Credentials maps API key to token. Empty disables authentication.
	Credentials map[string]string
	// Seed requests are listed from the start.
	Seed []model.IngestRequestRecord
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Fault makes matching requests fail. Status 0 drops the connection without a response.
type Fault struct {
	Method     string
	PathSuffix string
	Status     int
	Message    string
	// Times is how many requests the fault applies to; 0 means every request.
	Times int
}

// Server is the stub M2M API.
type Server struct {
	store  *memoryStore
	hashes map[string][]byte

	mu     sync.Mutex
	faults []*Fault
}

func NewServer(opts Options) (*Server, error) {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	s := &Server{store: newMemoryStore(), hashes: make(map[string][]byte, len(opts.Credentials))}
	for key, token := range opts.Credentials {
		hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash token for %s: %w", key, err)
		}
		s.hashes[key] = hash
	}
	s.store.seed(opts.Seed)
	return s, nil
}

// LoadSeed reads a JSON array of ingest request records as returned by the list endpoint.
func LoadSeed(path string) ([]model.IngestRequestRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var records []model.IngestRequestRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return records, nil
}

// InjectFault adds a fault rule.
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &f)
}

// ClearFaults removes every fault rule.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Requests returns a snapshot of every ingest request.
func (s *Server) Requests() []model.IngestRequestRecord {
	return s.store.list()
}

// Purges returns every purge received, in order.
func (s *Server) Purges() []model.PurgeRequest {
	return s.store.purgeList()
}

// Annotation returns a stored annotation.
func (s *Server) Annotation(id int64) (model.AnnotationRecord, bool) {
	return s.store.annotation(id)
}

// SeedAnnotation makes id available for updates.
func (s *Server) SeedAnnotation(id int64) {
	s.store.seedAnnotation(id)
}

// SetJobCounts overrides the file status counts reported for a request.
func (s *Server) SetJobCounts(id int64, counts model.JobCounts) {
	s.store.setJobCounts(id, counts)
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logx.RequestIDMiddleware())
	r.Use(logx.AccessLogMiddleware("m2m_stub"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("")
	api.Use(s.basicAuth(), s.faultMiddleware())
	NewIngestHandler(s.store).RegisterRoutes(api)
	NewAnnotationHandler(s.store).RegisterRoutes(api)
	return r
}

func (s *Server) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.hashes) == 0 {
			c.Next()
			return
		}
		key, token, ok := c.Request.BasicAuth()
		if ok {
			if hash, found := s.hashes[key]; found && bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil {
				c.Set("api_key", key)
				c.Next()
				return
			}
		}
		c.Header("WWW-Authenticate", `Basic realm="m2m"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication failed"})
	}
}

func (s *Server) faultMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := s.matchFault(c.Request.Method, c.Request.URL.Path)
		if f == nil {
			c.Next()
			return
		}
		if f.Status == 0 {
			if hj, ok := c.Writer.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					c.Abort()
					return
				}
			}
			f.Status = http.StatusBadGateway
		}
		msg := f.Message
		if msg == "" {
			msg = http.StatusText(f.Status)
		}
		c.AbortWithStatusJSON(f.Status, gin.H{"message": msg, "statusCode": statusName(f.Status)})
	}
}

func (s *Server) matchFault(method, path string) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.Method != "" && !strings.EqualFold(f.Method, method) {
			continue
		}
		if f.PathSuffix != "" && !strings.HasSuffix(strings.TrimSuffix(path, "/"), strings.TrimSuffix(f.PathSuffix, "/")) {
			continue
		}
		match := *f
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}
		return &match
	}
	return nil
}
