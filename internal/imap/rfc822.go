package imap

import (
	"fmt"
	"strings"
	"time"

	"heron/internal/models"
)

// mimeBoundary is the fixed multipart boundary used when
// reconstructing a stored message for BODY[] and RFC822 fetches.
const mimeBoundary = "boundary"

func headerLines(msg *models.Message) []string {
	lines := []string{
		fmt.Sprintf("Message-ID: %s", msg.MessageID),
		fmt.Sprintf("From: %s", msg.FromAddress),
		fmt.Sprintf("To: %s", msg.ToAddresses),
	}
	if msg.CcAddresses != "" {
		lines = append(lines, fmt.Sprintf("Cc: %s", msg.CcAddresses))
	}
	lines = append(lines,
		fmt.Sprintf("Subject: %s", msg.Subject),
		fmt.Sprintf("Date: %s", time.UnixMilli(msg.Mt).UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mimeBoundary),
	)
	return lines
}

// HeaderBlock returns the reconstructed RFC822 header section,
// CRLF-terminated.
func HeaderBlock(msg *models.Message) string {
	return strings.Join(headerLines(msg), "\r\n") + "\r\n"
}

// TextBlock returns the body served for BODY[TEXT] and RFC822.TEXT:
// the plain text body, or the HTML body when no plain text was
// stored.
func TextBlock(msg *models.Message) string {
	if msg.TextBody != "" {
		return msg.TextBody
	}
	return msg.HTMLBody
}

// BuildRFC822 reconstructs the stored message as a multipart/mixed
// RFC822 document. Attachment bodies are not inlined; each attachment
// part carries its MIME headers and a placeholder, since the payload
// lives in the blob store.
func BuildRFC822(msg *models.Message, atts []*models.Attachment) string {
	lines := headerLines(msg)
	lines = append(lines, "", "--"+mimeBoundary)

	if msg.TextBody != "" {
		lines = append(lines,
			"Content-Type: text/plain; charset=utf-8",
			"",
			msg.TextBody)
	}
	if msg.HTMLBody != "" {
		lines = append(lines,
			"--"+mimeBoundary,
			"Content-Type: text/html; charset=utf-8",
			"",
			msg.HTMLBody)
	}
	for _, att := range atts {
		mimeType := att.ContentType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		disposition := att.ContentDisposition
		if disposition == "" {
			disposition = "attachment"
		}
		lines = append(lines,
			"--"+mimeBoundary,
			fmt.Sprintf("Content-Type: %s", mimeType),
			fmt.Sprintf("Content-Disposition: %s; filename=%q", disposition, att.Filename),
			"Content-Transfer-Encoding: base64",
			"",
			"[Attachment data]")
	}
	lines = append(lines, "--"+mimeBoundary+"--")

	return strings.Join(lines, "\r\n")
}

// BuildBodyStructure renders a simplified BODYSTRUCTURE listing the
// text and html parts; a message with neither yields (NIL).
func BuildBodyStructure(msg *models.Message) string {
	var parts []string
	if msg.TextBody != "" {
		parts = append(parts, `("text" "plain" ("charset" "utf-8") NIL NIL "7bit" 0 0)`)
	}
	if msg.HTMLBody != "" {
		parts = append(parts, `("text" "html" ("charset" "utf-8") NIL NIL "7bit" 0 0)`)
	}
	if len(parts) == 0 {
		return "(NIL)"
	}
	return "(" + strings.Join(parts, " ") + ")"
}
