package imap

import (
	"strings"

	"heron/internal/models"
	"heron/internal/store"
)

func (s *Session) handleFetch(tag string, args []string) {
	if !s.state.Authenticated || !s.state.Selected() {
		s.send("%s NO Not authenticated or no mailbox selected", tag)
		return
	}
	if len(args) < 2 {
		s.send("%s BAD FETCH command requires sequence and data items", tag)
		return
	}

	seqSet := ParseSequenceSet(args[0])
	if seqSet.Empty() {
		s.send("%s BAD Invalid sequence", tag)
		return
	}

	messages, err := s.store.Messages().List(s.state.Mailbox.ID, store.OrderByArrival)
	if err != nil {
		s.fail(tag, "Fetch", err)
		return
	}

	items := ParseFetchItems(strings.Join(args[1:], " "))
	for _, num := range seqSet.Resolve(len(messages)) {
		if err := s.serveFetch(num, messages[num-1], items); err != nil {
			s.fail(tag, "Fetch", err)
			return
		}
	}

	s.send("%s OK Fetch completed", tag)
}

func (s *Session) handleUIDFetch(tag string, args []string) {
	if len(args) < 2 {
		s.send("%s BAD UID FETCH command requires UID sequence and data items", tag)
		return
	}

	uidSet := ParseSequenceSet(args[0])
	if uidSet.Empty() {
		s.send("%s BAD Invalid UID sequence", tag)
		return
	}

	messages, err := s.store.Messages().List(s.state.Mailbox.ID, store.OrderByArrival)
	if err != nil {
		s.fail(tag, "UID FETCH", err)
		return
	}

	// Exactly one UID item leads every UID FETCH response, whether or
	// not the client asked for it.
	items := []FetchItem{FetchUID{}}
	for _, item := range ParseFetchItems(strings.Join(args[1:], " ")) {
		if _, isUID := item.(FetchUID); isUID {
			continue
		}
		items = append(items, item)
	}

	lastUID := 0
	if len(messages) > 0 {
		lastUID = int(messages[len(messages)-1].ID)
	}

	for i, msg := range messages {
		if !uidSet.Matches(int(msg.ID), lastUID) {
			continue
		}
		if err := s.serveFetch(i+1, msg, items); err != nil {
			s.fail(tag, "UID FETCH", err)
			return
		}
	}

	s.send("%s OK UID FETCH completed", tag)
}

// serveFetch writes one FETCH response line and applies the implicit
// \Seen mutation when a non-peek body item was served.
func (s *Session) serveFetch(seqNum int, msg *models.Message, items []FetchItem) error {
	var atts []*models.Attachment
	if fetchNeedsAttachments(items) {
		var err error
		atts, err = s.store.Attachments().ListByMessage(msg.ID)
		if err != nil {
			return err
		}
	}

	if err := s.send("%s", FormatFetch(seqNum, items, msg, atts)); err != nil {
		return err
	}

	if !msg.IsRead && fetchMarksSeen(items) {
		if err := s.store.Messages().SetReadStatus(msg.MailboxID, msg.ID, true); err != nil {
			return err
		}
		msg.IsRead = true
	}
	return nil
}

func fetchNeedsAttachments(items []FetchItem) bool {
	for _, item := range items {
		if _, ok := item.(FetchBody); ok {
			return true
		}
	}
	return false
}

func fetchMarksSeen(items []FetchItem) bool {
	for _, item := range items {
		if item.MarksSeen() {
			return true
		}
	}
	return false
}
