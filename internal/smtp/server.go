package smtp

import (
	"fmt"
	"log"
	"net"
	"sync"

	"heron/internal/auth"
	"heron/internal/blobstore"
	"heron/internal/conf"
	"heron/internal/store"
)

// Server accepts SMTP connections for inbound delivery and
// authenticated relaying.
type Server struct {
	config   *conf.Config
	store    store.Store
	blobs    *blobstore.S3Store
	tokens   *auth.TokenIssuer
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	mu       sync.Mutex
}

// NewServer creates an SMTP server. blobs and tokens may be nil when
// blob storage or relay auth is not configured.
func NewServer(cfg *conf.Config, st store.Store, blobs *blobstore.S3Store, tokens *auth.TokenIssuer) *Server {
	return &Server{
		config:   cfg,
		store:    st,
		blobs:    blobs,
		tokens:   tokens,
		shutdown: make(chan struct{}),
	}
}

// Start listens on the configured address and serves connections
// until Stop is called. It blocks until all sessions finish.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.SMTPListen)
	if err != nil {
		return fmt.Errorf("failed to start SMTP listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("SMTP server listening on %s", s.config.SMTPListen)

	s.wg.Add(1)
	go s.acceptConnections(listener)

	s.wg.Wait()
	log.Println("All SMTP connections closed")
	return nil
}

// Stop closes the listener and lets in-flight sessions run out.
func (s *Server) Stop() {
	close(s.shutdown)

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
}

func (s *Server) acceptConnections(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				log.Println("Stopping SMTP listener...")
				return
			default:
				log.Printf("Accept error on SMTP listener: %v", err)
				continue
			}
		}

		log.Printf("New SMTP connection from: %s", conn.RemoteAddr())

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	session := NewSession(conn, s.store, s.blobs, s.tokens, s.config.Hostname, s.config.MaxMessageSize)
	if err := session.Handle(); err != nil {
		log.Printf("SMTP session ended for %s: %v", conn.RemoteAddr(), err)
	}
}
