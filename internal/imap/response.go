package imap

import (
	"fmt"
	"strings"
	"time"

	"heron/internal/models"
)

const internalDateLayout = "02-Jan-2006 15:04:05 +0000"

// FetchItem is one data item of a FETCH response. Each variant knows
// how to render itself for a message, so the formatter stays
// exhaustive over the supported item set.
type FetchItem interface {
	// Render produces the wire form of the item, including its name
	// and any {size} literal framing.
	Render(msg *models.Message, atts []*models.Attachment) string
	// MarksSeen reports whether serving this item implicitly sets
	// the \Seen flag on the message.
	MarksSeen() bool
}

// FetchUID renders "UID <n>". It is always emitted as the first item
// of a UID FETCH response.
type FetchUID struct{}

func (FetchUID) Render(msg *models.Message, _ []*models.Attachment) string {
	return fmt.Sprintf("UID %d", msg.ID)
}

func (FetchUID) MarksSeen() bool { return false }

// FetchFlags renders "FLAGS (...)" from the message's read and
// flagged state.
type FetchFlags struct{}

func (FetchFlags) Render(msg *models.Message, _ []*models.Attachment) string {
	return fmt.Sprintf("FLAGS %s", FlagList(msg))
}

func (FetchFlags) MarksSeen() bool { return false }

// FetchInternalDate renders the arrival timestamp in IMAP date-time
// form, always in UTC.
type FetchInternalDate struct{}

func (FetchInternalDate) Render(msg *models.Message, _ []*models.Attachment) string {
	t := time.UnixMilli(msg.Mt).UTC()
	return fmt.Sprintf("INTERNALDATE %q", t.Format(internalDateLayout))
}

func (FetchInternalDate) MarksSeen() bool { return false }

// FetchSize renders "RFC822.SIZE <n>".
type FetchSize struct{}

func (FetchSize) Render(msg *models.Message, _ []*models.Attachment) string {
	return fmt.Sprintf("RFC822.SIZE %d", msg.Size)
}

func (FetchSize) MarksSeen() bool { return false }

// FetchBody renders the full reconstructed message as a byte literal.
// Covers BODY[], BODY.PEEK[] and RFC822; peek forms do not mark the
// message seen.
type FetchBody struct {
	Name string
	Peek bool
}

func (f FetchBody) Render(msg *models.Message, atts []*models.Attachment) string {
	body := BuildRFC822(msg, atts)
	return fmt.Sprintf("%s {%d}\r\n%s", f.Name, len(body), body)
}

func (f FetchBody) MarksSeen() bool { return !f.Peek }

// FetchHeader renders the reconstructed header block as a byte
// literal. Covers BODY[HEADER], BODY.PEEK[HEADER] and RFC822.HEADER,
// none of which mark the message seen.
type FetchHeader struct {
	Name string
}

func (f FetchHeader) Render(msg *models.Message, _ []*models.Attachment) string {
	hdr := HeaderBlock(msg)
	return fmt.Sprintf("%s {%d}\r\n%s", f.Name, len(hdr), hdr)
}

func (FetchHeader) MarksSeen() bool { return false }

// FetchText renders the message text body as a byte literal. Covers
// BODY[TEXT], BODY.PEEK[TEXT] and RFC822.TEXT.
type FetchText struct {
	Name string
	Peek bool
}

func (f FetchText) Render(msg *models.Message, _ []*models.Attachment) string {
	text := TextBlock(msg)
	return fmt.Sprintf("%s {%d}\r\n%s", f.Name, len(text), text)
}

func (f FetchText) MarksSeen() bool { return !f.Peek }

// FetchBodyStructure renders a simplified BODYSTRUCTURE covering the
// text and html parts.
type FetchBodyStructure struct{}

func (FetchBodyStructure) Render(msg *models.Message, _ []*models.Attachment) string {
	return fmt.Sprintf("BODYSTRUCTURE %s", BuildBodyStructure(msg))
}

func (FetchBodyStructure) MarksSeen() bool { return false }

// ParseFetchItems maps the client's data-item list (with or without
// surrounding parentheses) to the internal item set. Unknown tokens
// are skipped; an empty or entirely unrecognized list falls back to
// the FLAGS INTERNALDATE RFC822.SIZE summary items.
func ParseFetchItems(spec string) []FetchItem {
	spec = strings.TrimSpace(spec)
	spec = strings.TrimPrefix(spec, "(")
	spec = strings.TrimSuffix(spec, ")")

	var items []FetchItem
	for _, token := range strings.Fields(strings.ToUpper(spec)) {
		switch token {
		case "UID":
			items = append(items, FetchUID{})
		case "FLAGS":
			items = append(items, FetchFlags{})
		case "INTERNALDATE":
			items = append(items, FetchInternalDate{})
		case "RFC822.SIZE":
			items = append(items, FetchSize{})
		case "BODY[]":
			items = append(items, FetchBody{Name: "BODY[]"})
		case "BODY.PEEK[]":
			items = append(items, FetchBody{Name: "BODY[]", Peek: true})
		case "RFC822":
			items = append(items, FetchBody{Name: "RFC822"})
		case "BODY[HEADER]":
			items = append(items, FetchHeader{Name: "BODY[HEADER]"})
		case "BODY.PEEK[HEADER]":
			items = append(items, FetchHeader{Name: "BODY[HEADER]"})
		case "RFC822.HEADER":
			items = append(items, FetchHeader{Name: "RFC822.HEADER"})
		case "BODY[TEXT]":
			items = append(items, FetchText{Name: "BODY[TEXT]"})
		case "BODY.PEEK[TEXT]":
			items = append(items, FetchText{Name: "BODY[TEXT]", Peek: true})
		case "RFC822.TEXT":
			items = append(items, FetchText{Name: "RFC822.TEXT"})
		case "BODYSTRUCTURE":
			items = append(items, FetchBodyStructure{})
		}
	}

	if len(items) == 0 {
		items = []FetchItem{FetchFlags{}, FetchInternalDate{}, FetchSize{}}
	}
	return items
}

// FormatFetch renders one untagged FETCH response line for a message.
// Items are space separated; literal items embed their payload after
// the {size} marker, with the list's closing parenthesis following
// the final item's payload.
func FormatFetch(seqNum int, items []FetchItem, msg *models.Message, atts []*models.Attachment) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Render(msg, atts))
	}
	return fmt.Sprintf("* %d FETCH (%s)", seqNum, strings.Join(parts, " "))
}

// FlagList renders the message's flags as a parenthesized list.
func FlagList(msg *models.Message) string {
	var flags []string
	if msg.IsRead {
		flags = append(flags, `\Seen`)
	}
	if msg.IsFlagged {
		flags = append(flags, `\Flagged`)
	}
	return "(" + strings.Join(flags, " ") + ")"
}
