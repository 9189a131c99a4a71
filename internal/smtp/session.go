package smtp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-sasl"

	"heron/internal/auth"
	"heron/internal/blobstore"
	"heron/internal/mailparse"
	"heron/internal/models"
	"heron/internal/store"
)

const sessionTimeout = 5 * time.Minute

// Session is one SMTP connection. Incoming mail for local accounts
// needs no authentication; AUTH PLAIN accepts either the account
// password or a relay token.
type Session struct {
	conn           net.Conn
	reader         *bufio.Reader
	writer         *bufio.Writer
	store          store.Store
	blobs          *blobstore.S3Store
	tokens         *auth.TokenIssuer
	hostname       string
	maxMessageSize int64

	helo          string
	authenticated bool
	mailFrom      string
	recipients    []string
}

// NewSession wires a session for an accepted connection. blobs and
// tokens may be nil when blob storage or relay auth is not configured.
func NewSession(conn net.Conn, st store.Store, blobs *blobstore.S3Store, tokens *auth.TokenIssuer, hostname string, maxMessageSize int64) *Session {
	return &Session{
		conn:           conn,
		reader:         bufio.NewReader(conn),
		writer:         bufio.NewWriter(conn),
		store:          st,
		blobs:          blobs,
		tokens:         tokens,
		hostname:       hostname,
		maxMessageSize: maxMessageSize,
		recipients:     make([]string, 0),
	}
}

// Handle runs the session until QUIT or disconnect.
func (s *Session) Handle() error {
	if err := s.sendResponse(220, "%s ESMTP Service ready", s.hostname); err != nil {
		return err
	}

	for {
		s.conn.SetDeadline(time.Now().Add(sessionTimeout))

		line, err := s.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		log.Printf("C: %s", line)

		parts := strings.SplitN(line, " ", 2)
		cmd := strings.ToUpper(parts[0])
		args := ""
		if len(parts) > 1 {
			args = parts[1]
		}

		if err := s.handleCommand(cmd, args); err != nil {
			log.Printf("Command error: %v", err)
			if strings.Contains(err.Error(), "QUIT") {
				return nil
			}
		}
	}
}

func (s *Session) handleCommand(cmd, args string) error {
	switch cmd {
	case "HELO":
		return s.handleHELO(args)
	case "EHLO":
		return s.handleEHLO(args)
	case "AUTH":
		return s.handleAUTH(args)
	case "MAIL":
		return s.handleMAIL(args)
	case "RCPT":
		return s.handleRCPT(args)
	case "DATA":
		return s.handleDATA()
	case "RSET":
		return s.handleRSET()
	case "NOOP":
		return s.handleNOOP()
	case "QUIT":
		return s.handleQUIT()
	default:
		return s.sendResponse(500, "Command not recognized")
	}
}

func (s *Session) handleHELO(args string) error {
	if args == "" {
		return s.sendResponse(501, "HELO requires domain address")
	}
	s.helo = args
	return s.sendResponse(250, "%s", s.hostname)
}

func (s *Session) handleEHLO(args string) error {
	if args == "" {
		return s.sendResponse(501, "EHLO requires domain address")
	}
	s.helo = args

	responses := []string{
		fmt.Sprintf("250-%s", s.hostname),
		"250-PIPELINING",
		"250-ENHANCEDSTATUSCODES",
		fmt.Sprintf("250-SIZE %d", s.maxMessageSize),
		"250-AUTH PLAIN",
		"250 8BITMIME",
	}

	for _, resp := range responses {
		if err := s.sendRawResponse(resp); err != nil {
			return err
		}
	}
	return nil
}

// handleAUTH implements AUTH PLAIN. The password slot accepts the
// account password or a relay token minted for the account.
func (s *Session) handleAUTH(args string) error {
	if s.authenticated {
		return s.sendResponse(503, "Already authenticated")
	}

	parts := strings.Fields(args)
	if len(parts) == 0 {
		return s.sendResponse(501, "AUTH requires a mechanism")
	}
	if strings.ToUpper(parts[0]) != sasl.Plain {
		return s.sendResponse(504, "Unrecognized authentication mechanism: %s", parts[0])
	}

	server := sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return fmt.Errorf("identities do not match")
		}
		return s.checkCredentials(username, password)
	})

	var response []byte
	if len(parts) > 1 {
		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return s.sendResponse(501, "Invalid base64 response")
		}
		response = decoded
	}

	for {
		challenge, done, err := server.Next(response)
		if err != nil {
			return s.sendResponse(535, "5.7.8 Authentication credentials invalid: %v", err)
		}
		if done {
			break
		}

		if err := s.sendRawResponse("334 " + base64.StdEncoding.EncodeToString(challenge)); err != nil {
			return err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "*" {
			return s.sendResponse(501, "Authentication cancelled")
		}
		response, err = base64.StdEncoding.DecodeString(line)
		if err != nil {
			return s.sendResponse(501, "Invalid base64 response")
		}
	}

	s.authenticated = true
	return s.sendResponse(235, "2.7.0 Authentication successful")
}

// checkCredentials accepts the account password or a valid relay
// token issued for the account.
func (s *Session) checkCredentials(username, password string) error {
	account, err := s.store.Accounts().FindByUsername(username)
	if err != nil {
		return fmt.Errorf("account not found")
	}

	if account.Password != "" && account.Password == password {
		return nil
	}

	if s.tokens != nil {
		subject, err := s.tokens.Verify(password)
		if err == nil && subject == username {
			return nil
		}
	}

	return fmt.Errorf("authentication failed")
}

func (s *Session) handleMAIL(args string) error {
	if s.helo == "" {
		return s.sendResponse(503, "Please send HELO first")
	}
	if s.mailFrom != "" {
		return s.sendResponse(503, "Sender already specified")
	}

	from, err := parseMailFrom(args)
	if err != nil {
		return s.sendResponse(501, "Invalid MAIL FROM syntax: %v", err)
	}

	s.mailFrom = from
	return s.sendResponse(250, "2.1.0 Sender OK")
}

func (s *Session) handleRCPT(args string) error {
	if s.mailFrom == "" {
		return s.sendResponse(503, "Please send MAIL FROM first")
	}

	to, err := parseRcptTo(args)
	if err != nil {
		return s.sendResponse(501, "Invalid RCPT TO syntax: %v", err)
	}

	s.recipients = append(s.recipients, to)
	return s.sendResponse(250, "2.1.5 Recipient OK")
}

func (s *Session) handleDATA() error {
	if s.mailFrom == "" {
		return s.sendResponse(503, "Please send MAIL FROM first")
	}
	if len(s.recipients) == 0 {
		return s.sendResponse(503, "Please send RCPT TO first")
	}

	if err := s.sendResponse(354, "Start mail input; end with <CRLF>.<CRLF>"); err != nil {
		return err
	}

	data, err := readData(s.reader, s.maxMessageSize)
	if err != nil {
		log.Printf("Error reading message data: %v", err)
		return s.sendResponse(554, "Error reading message: %v", err)
	}

	parsed, err := mailparse.Parse(data)
	if err != nil {
		log.Printf("Error parsing message: %v", err)
		return s.sendResponse(554, "Error parsing message: %v", err)
	}

	for _, recipient := range s.recipients {
		if err := s.deliver(recipient, data, parsed); err != nil {
			log.Printf("Delivery failed for %s: %v", recipient, err)
			return s.sendResponse(550, "Error processing message")
		}
		log.Printf("Message delivered to %s: from=%s subject=%q", recipient, s.mailFrom, parsed.Subject)
	}

	s.mailFrom = ""
	s.recipients = make([]string, 0)

	return s.sendResponse(250, "Message accepted for delivery")
}

// deliver stores the message in the recipient's INBOX, creating the
// account and mailbox when missing, and uploads attachment payloads
// to the blob store.
func (s *Session) deliver(recipient string, raw []byte, parsed *mailparse.ParsedMail) error {
	account, err := s.store.Accounts().GetOrCreate(recipient)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	mailbox, err := s.store.Mailboxes().GetOrCreate(account.ID, "INBOX")
	if err != nil {
		return fmt.Errorf("get mailbox: %w", err)
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = generateMessageID(s.hostname)
	}

	arrival := time.Now()
	if !parsed.Date.IsZero() {
		arrival = parsed.Date
	}

	msg, err := s.store.Messages().Create(&models.Message{
		MailboxID:    mailbox.ID,
		MessageID:    messageID,
		Subject:      parsed.Subject,
		FromAddress:  parsed.From,
		ToAddresses:  parsed.To,
		CcAddresses:  parsed.Cc,
		BccAddresses: parsed.Bcc,
		TextBody:     parsed.TextBody,
		HTMLBody:     parsed.HTMLBody,
		Size:         int64(len(raw)),
		Mt:           arrival.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	for _, att := range parsed.Attachments {
		s.storeAttachment(account.ID, msg.ID, att)
	}

	return nil
}

// storeAttachment uploads one attachment payload and records its
// metadata. A failed attachment never fails the whole delivery.
func (s *Session) storeAttachment(accountID, messageID int64, att mailparse.Attachment) {
	bucket, key := "", ""
	if s.blobs.IsEnabled() {
		key = fmt.Sprintf("%d/%d/%s", accountID, messageID, sanitizeFilename(att.Filename))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.blobs.Put(ctx, key, att.Content, att.ContentType); err != nil {
			log.Printf("Failed to upload attachment %s: %v", att.Filename, err)
			key = ""
		} else {
			bucket = s.blobs.Bucket()
		}
	}

	_, err := s.store.Attachments().Create(&models.Attachment{
		MessageID:          messageID,
		Filename:           att.Filename,
		ContentType:        att.ContentType,
		ContentDisposition: att.ContentDisposition,
		ContentID:          att.ContentID,
		Size:               int64(len(att.Content)),
		BlobBucket:         bucket,
		BlobKey:            key,
	})
	if err != nil {
		log.Printf("Failed to record attachment %s: %v", att.Filename, err)
	}
}

func (s *Session) handleRSET() error {
	s.mailFrom = ""
	s.recipients = make([]string, 0)
	return s.sendResponse(250, "Reset state")
}

func (s *Session) handleNOOP() error {
	return s.sendResponse(250, "OK")
}

func (s *Session) handleQUIT() error {
	s.sendResponse(221, "Bye")
	return fmt.Errorf("QUIT")
}

func parseMailFrom(args string) (string, error) {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(strings.ToUpper(args), "FROM:") {
		return "", fmt.Errorf("expected FROM:")
	}

	args = strings.TrimSpace(args[len("FROM:"):])
	args = strings.TrimPrefix(args, "<")
	args = strings.TrimSuffix(args, ">")

	// Drop SIZE and other ESMTP parameters.
	parts := strings.Fields(args)
	if len(parts) > 0 {
		return strings.TrimSuffix(parts[0], ">"), nil
	}
	return args, nil
}

func parseRcptTo(args string) (string, error) {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(strings.ToUpper(args), "TO:") {
		return "", fmt.Errorf("expected TO:")
	}

	args = strings.TrimSpace(args[len("TO:"):])
	args = strings.TrimPrefix(args, "<")
	args = strings.TrimSuffix(args, ">")

	if args == "" {
		return "", fmt.Errorf("empty address")
	}
	return args, nil
}

// readData reads dot-terminated message data, undoing dot-stuffing.
func readData(r *bufio.Reader, maxSize int64) ([]byte, error) {
	var buf bytes.Buffer
	var size int64

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading data: %w", err)
		}

		if line == ".\r\n" || line == ".\n" {
			break
		}

		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}

		n, _ := buf.WriteString(line)
		size += int64(n)

		if maxSize > 0 && size > maxSize {
			return nil, fmt.Errorf("message size exceeds maximum allowed size (%d bytes)", maxSize)
		}
	}

	return buf.Bytes(), nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename makes a filename safe for use in a blob key.
func sanitizeFilename(filename string) string {
	safe := unsafeKeyChars.ReplaceAllString(filename, "_")
	if len(safe) > 255 {
		safe = safe[:255]
	}
	if safe == "" {
		safe = "attachment"
	}
	return safe
}

func generateMessageID(hostname string) string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(b), hostname)
}

func (s *Session) sendResponse(code int, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	return s.sendRawResponse(fmt.Sprintf("%d %s", code, message))
}

func (s *Session) sendRawResponse(response string) error {
	if !strings.HasSuffix(response, "\r\n") {
		response += "\r\n"
	}

	log.Printf("S: %s", strings.TrimSpace(response))

	if _, err := s.writer.WriteString(response); err != nil {
		return err
	}
	return s.writer.Flush()
}
