package mailparse

import (
	"bytes"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Attachment is one decoded attachment of a parsed message.
type Attachment struct {
	Filename           string
	ContentType        string
	ContentDisposition string
	ContentID          string
	Content            []byte
}

// ParsedMail is the structured form of a raw RFC822 message, ready
// for the storage layer.
type ParsedMail struct {
	MessageID   string
	Subject     string
	From        string
	To          string
	Cc          string
	Bcc         string
	Date        time.Time
	TextBody    string
	HTMLBody    string
	Size        int64
	Attachments []Attachment
}

// Parse decodes raw message bytes into a ParsedMail. MIME multipart
// messages are walked part by part; plain non-MIME messages fall back
// to a header/body split.
func Parse(raw []byte) (*ParsedMail, error) {
	parsed := &ParsedMail{Size: int64(len(raw))}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME-well-formed; try a plain header/body split before
		// giving up.
		return parsePlain(raw)
	}

	h := mr.Header
	parsed.Subject, _ = h.Text("Subject")
	parsed.From = h.Get("From")
	parsed.To = h.Get("To")
	parsed.Cc = h.Get("Cc")
	parsed.Bcc = h.Get("Bcc")
	if id, err := h.MessageID(); err == nil {
		parsed.MessageID = id
	}
	if date, err := h.Date(); err == nil {
		parsed.Date = date
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read message part: %w", err)
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read inline part: %w", err)
			}
			contentType, _, _ := ph.ContentType()
			switch {
			case strings.EqualFold(contentType, "text/html"):
				parsed.HTMLBody += string(body)
			default:
				parsed.TextBody += string(body)
			}
		case *mail.AttachmentHeader:
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read attachment: %w", err)
			}
			filename, _ := ph.Filename()
			contentType, _, _ := ph.ContentType()
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			contentID := strings.Trim(ph.Get("Content-Id"), "<>")
			parsed.Attachments = append(parsed.Attachments, Attachment{
				Filename:           filename,
				ContentType:        contentType,
				ContentDisposition: "attachment",
				ContentID:          contentID,
				Content:            content,
			})
		}
	}

	return parsed, nil
}

// parsePlain handles messages the MIME reader rejects: a bare header
// block followed by a text body.
func parsePlain(raw []byte) (*ParsedMail, error) {
	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}

	parsed := &ParsedMail{
		MessageID: strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		Subject:   msg.Header.Get("Subject"),
		From:      msg.Header.Get("From"),
		To:        msg.Header.Get("To"),
		Cc:        msg.Header.Get("Cc"),
		Bcc:       msg.Header.Get("Bcc"),
		TextBody:  string(body),
		Size:      int64(len(raw)),
	}
	if date, err := msg.Header.Date(); err == nil {
		parsed.Date = date
	}
	return parsed, nil
}
