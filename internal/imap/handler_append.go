package imap

import (
	"fmt"
	"strings"
	"time"

	"heron/internal/mailparse"
	"heron/internal/models"
)

const appendDateLayout = "2-Jan-2006 15:04:05 -0700"

// handleAppend stores one message into a mailbox, creating the
// mailbox if missing. The message payload is either the final quoted
// argument or a byte literal declared at end-of-line.
func (s *Session) handleAppend(tag string, args []string) {
	if !s.state.Authenticated {
		s.send("%s NO Not authenticated", tag)
		return
	}
	if len(args) < 1 {
		s.send("%s BAD APPEND command requires mailbox name", tag)
		return
	}

	mailboxPath := args[0]
	rest := args[1:]

	var raw []byte
	if len(rest) > 0 {
		if size, nonSync, ok := ParseLiteralSize(rest[len(rest)-1]); ok {
			rest = rest[:len(rest)-1]
			if s.maxMessageSize > 0 && int64(size) > s.maxMessageSize {
				s.send("%s NO Append failed: message exceeds maximum size", tag)
				return
			}
			if !nonSync {
				s.send("+ Ready for literal data")
			}
			data, err := ReadLiteral(s.reader, size)
			if err != nil {
				s.fail(tag, "Append", err)
				return
			}
			raw = data
		} else {
			raw = []byte(rest[len(rest)-1])
			rest = rest[:len(rest)-1]
		}
	}

	if len(raw) == 0 {
		s.send("%s BAD APPEND command requires message data", tag)
		return
	}

	// Remaining middle arguments are the optional flag list and
	// date-time. A multi-flag list arrives as several tokens, from the
	// one opening with "(" through the one ending with ")".
	isRead := false
	var internalDate time.Time
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if strings.HasPrefix(arg, "(") {
			for !strings.HasSuffix(arg, ")") && i+1 < len(rest) {
				i++
				arg += " " + rest[i]
			}
			isRead = isRead || strings.Contains(arg, `\Seen`)
			continue
		}
		if t, err := time.Parse(appendDateLayout, strings.Trim(arg, "\"")); err == nil {
			internalDate = t
		}
	}

	mailbox, err := s.store.Mailboxes().GetOrCreate(s.state.Account.ID, mailboxPath)
	if err != nil {
		s.fail(tag, "Append", err)
		return
	}

	parsed, err := mailparse.Parse(raw)
	if err != nil {
		s.fail(tag, "Append", fmt.Errorf("parse message: %w", err))
		return
	}

	arrival := time.Now()
	switch {
	case !internalDate.IsZero():
		arrival = internalDate
	case !parsed.Date.IsZero():
		arrival = parsed.Date
	}

	msg, err := s.store.Messages().Create(&models.Message{
		MailboxID:    mailbox.ID,
		MessageID:    parsed.MessageID,
		Subject:      parsed.Subject,
		FromAddress:  parsed.From,
		ToAddresses:  parsed.To,
		CcAddresses:  parsed.Cc,
		BccAddresses: parsed.Bcc,
		TextBody:     parsed.TextBody,
		HTMLBody:     parsed.HTMLBody,
		Size:         int64(len(raw)),
		IsRead:       isRead,
		Mt:           arrival.UnixMilli(),
	})
	if err != nil {
		s.fail(tag, "Append", err)
		return
	}

	for _, att := range parsed.Attachments {
		_, err := s.store.Attachments().Create(&models.Attachment{
			MessageID:          msg.ID,
			Filename:           att.Filename,
			ContentType:        att.ContentType,
			ContentDisposition: att.ContentDisposition,
			ContentID:          att.ContentID,
			Size:               int64(len(att.Content)),
		})
		if err != nil {
			s.fail(tag, "Append", err)
			return
		}
	}

	s.send("%s OK APPEND completed", tag)
}
