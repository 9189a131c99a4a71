package imap

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"heron/internal/models"
	"heron/internal/store"
)

const sessionTimeout = 30 * time.Minute

// Session is one IMAP connection's state machine. It owns the
// per-connection state (authentication, selected mailbox) and
// processes commands strictly one at a time; the storage layer is the
// only shared resource.
type Session struct {
	conn           net.Conn
	reader         *bufio.Reader
	writer         *bufio.Writer
	store          store.Store
	state          *models.ClientState
	maxMessageSize int64
}

// NewSession wires a session for an accepted connection.
// maxMessageSize caps APPEND literal payloads; zero means unlimited.
func NewSession(conn net.Conn, st store.Store, maxMessageSize int64) *Session {
	return &Session{
		conn:           conn,
		reader:         bufio.NewReader(conn),
		writer:         bufio.NewWriter(conn),
		store:          st,
		state:          &models.ClientState{},
		maxMessageSize: maxMessageSize,
	}
}

// Handle runs the session: greeting, then one command line at a time
// until LOGOUT or a transport error.
func (s *Session) Handle() error {
	if err := s.send("* OK IMAP server ready"); err != nil {
		return err
	}

	for {
		s.conn.SetReadDeadline(time.Now().Add(sessionTimeout))

		line, readErr := s.reader.ReadString('\n')
		if readErr != nil && line == "" {
			return nil
		}

		line = strings.TrimRight(line, "\r\n")
		log.Printf("C: %s", line)

		tag, verb, args, ok := Tokenize(line)
		if !ok {
			if err := s.send("* BAD Empty command"); err != nil {
				return err
			}
			continue
		}

		if s.dispatch(tag, verb, args) || readErr != nil {
			return nil
		}
	}
}

// dispatch routes one command to its handler. Handlers send their own
// responses, including failure responses, so a backend error never
// terminates the session.
func (s *Session) dispatch(tag, verb string, args []string) (quit bool) {
	switch verb {
	case "CAPABILITY":
		s.handleCapability(tag)
	case "NOOP":
		s.send("%s OK NOOP completed", tag)
	case "LOGIN":
		s.handleLogin(tag, args)
	case "AUTHENTICATE":
		s.handleAuthenticate(tag, args)
	case "SELECT", "EXAMINE":
		s.handleSelect(tag, args)
	case "LIST":
		s.handleList(tag)
	case "FETCH":
		s.handleFetch(tag, args)
	case "SEARCH":
		s.handleSearch(tag, args, false)
	case "STORE":
		s.handleStore(tag, args, false)
	case "APPEND":
		s.handleAppend(tag, args)
	case "UID":
		s.handleUID(tag, args)
	case "LOGOUT":
		s.handleLogout(tag)
		return true
	default:
		s.send("%s BAD Unknown command: %s", tag, verb)
	}
	return false
}

// handleUID routes UID subcommands, which resolve their sequence
// argument as UIDs instead of positions.
func (s *Session) handleUID(tag string, args []string) {
	if !s.state.Authenticated || !s.state.Selected() {
		s.send("%s NO Not authenticated or no mailbox selected", tag)
		return
	}
	if len(args) == 0 {
		s.send("%s BAD UID command requires subcommand", tag)
		return
	}

	subcommand := strings.ToUpper(args[0])
	subArgs := args[1:]

	switch subcommand {
	case "FETCH":
		s.handleUIDFetch(tag, subArgs)
	case "SEARCH":
		s.handleSearch(tag, subArgs, true)
	case "STORE":
		s.handleStore(tag, subArgs, true)
	default:
		s.send("%s BAD UID subcommand not supported: %s", tag, subcommand)
	}
}

// send writes one response line, CRLF-terminated.
func (s *Session) send(format string, args ...interface{}) error {
	response := fmt.Sprintf(format, args...)
	log.Printf("S: %s", sanitizeResponseForLogging(response))
	if _, err := s.writer.WriteString(response + "\r\n"); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return s.writer.Flush()
}

// fail logs a backend failure and reports it as a tagged NO without
// terminating the session.
func (s *Session) fail(tag, label string, err error) {
	log.Printf("%s failed: %v", label, err)
	s.send("%s NO %s failed: %v", tag, label, err)
}

// sanitizeResponseForLogging keeps logs readable when a response
// embeds a large message literal.
func sanitizeResponseForLogging(response string) string {
	if len(response) > 100 {
		if idx := strings.Index(response, "\r\n"); idx != -1 {
			return fmt.Sprintf("%s ... (%d bytes)", response[:idx], len(response))
		}
		return fmt.Sprintf("%s... (%d bytes)", response[:100], len(response))
	}
	return response
}
