package imap

import (
	"fmt"
	"log"
	"net"
	"sync"

	"heron/internal/conf"
	"heron/internal/store"
)

// Server accepts IMAP connections and runs one Session per
// connection. Sessions share nothing but the storage layer.
type Server struct {
	config   *conf.Config
	store    store.Store
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	mu       sync.Mutex
}

// NewServer creates an IMAP server using the given storage layer.
func NewServer(cfg *conf.Config, st store.Store) *Server {
	return &Server{
		config:   cfg,
		store:    st,
		shutdown: make(chan struct{}),
	}
}

// Start listens on the configured address and serves connections
// until Stop is called. It blocks until all sessions finish.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.IMAPListen)
	if err != nil {
		return fmt.Errorf("failed to start IMAP listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("IMAP server listening on %s", s.config.IMAPListen)

	s.wg.Add(1)
	go s.acceptConnections(listener)

	s.wg.Wait()
	log.Println("All IMAP connections closed")
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
				log.Println("Stopping IMAP listener...")
				return
			default:
				log.Printf("Accept error on IMAP listener: %v", err)
				continue
			}
		}

		log.Printf("New IMAP connection from: %s", conn.RemoteAddr())

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	session := NewSession(conn, s.store, s.config.MaxMessageSize)
	if err := session.Handle(); err != nil {
		log.Printf("IMAP session error from %s: %v", conn.RemoteAddr(), err)
	}

	log.Printf("IMAP connection closed: %s", conn.RemoteAddr())
}
