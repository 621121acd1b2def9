package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gpdir16/LocalKeys/internal/approval"
	"github.com/gpdir16/LocalKeys/internal/audit"
	cr "github.com/gpdir16/LocalKeys/internal/crypto"
	"github.com/gpdir16/LocalKeys/internal/storage"
	"github.com/gpdir16/LocalKeys/internal/vault"
)

// Server is the authenticated local RPC endpoint. A fresh bearer token is
// generated per process start and published in the discovery record; every
// request must present it exactly.
type Server struct {
	cfg    Config
	vault  *vault.Vault
	gate   *approval.Gate
	audit  *audit.Log
	store  storage.Store
	logger *log.Logger

	token    string
	rl       *multiLimiter
	listener net.Listener
	httpSrv  *http.Server
}

func New(cfg Config, v *vault.Vault, gate *approval.Gate, auditLog *audit.Log, store storage.Store, logger *log.Logger) (*Server, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = log.New(os.Stdout, "[localkeysd] ", log.LstdFlags)
	}

	token, err := cr.NewAuthToken()
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		vault:  v,
		gate:   gate,
		audit:  auditLog,
		store:  store,
		logger: logger,
		token:  token,
		rl:     newMultiLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst, cfg.RateTTL),
	}, nil
}

// Start binds the listener, publishes the discovery record, and serves in
// the background. The discovery record carries the real bound port, so it
// is written only after listening succeeded.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port)))
	if err != nil {
		return err
	}
	s.listener = ln

	rec := storage.DiscoveryRecord{
		Host:      s.cfg.Host,
		Port:      ln.Addr().(*net.TCPAddr).Port,
		AuthToken: s.token,
		PID:       os.Getpid(),
	}
	if err := storage.WriteDiscovery(s.store, rec); err != nil {
		ln.Close()
		return err
	}

	s.httpSrv = &http.Server{Handler: s}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve: %v", err)
		}
	}()

	s.logger.Printf("listening on %s", ln.Addr())
	if s.audit != nil {
		_ = s.audit.Appendf(audit.CategoryApp, "server started on port %d", rec.Port)
	}
	return nil
}

// Stop removes the discovery record first, so collaborators stop dialing,
// then shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if err := storage.RemoveDiscovery(s.store); err != nil {
		s.logger.Printf("remove discovery record: %v", err)
	}
	if s.audit != nil {
		_ = s.audit.Append(audit.CategoryApp, "server stopped")
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Port returns the bound port; valid after Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Token returns the bearer token for this process.
func (s *Server) Token() string { return s.token }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			writeResponse(w, http.StatusInternalServerError, errResponse("Internal error"))
		}
	}()

	addDefaultHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeResponse(w, http.StatusMethodNotAllowed, errResponse("Method not allowed"))
		return
	}

	if !s.rl.allow(getClientIP(r)) {
		writeResponse(w, http.StatusTooManyRequests, errResponse("Too many requests"))
		return
	}

	// Authentication happens before any vault or gate access.
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeResponse(w, http.StatusUnauthorized, errResponse("Authorization required"))
		return
	}
	presented := strings.TrimPrefix(header, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
		writeResponse(w, http.StatusUnauthorized, errResponse("Invalid token"))
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusBadRequest, errResponse("Invalid request body"))
		return
	}

	writeResponse(w, http.StatusOK, s.dispatch(r.Context(), req))
}

func addDefaultHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	h.Set("Access-Control-Allow-Methods", "POST,OPTIONS")
}

func writeResponse(w http.ResponseWriter, code int, resp response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
