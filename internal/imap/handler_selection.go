package imap

import (
	"errors"

	"heron/internal/store"
)

const permanentFlags = `(\Answered \Flagged \Deleted \Seen \Draft)`

// handleSelect serves SELECT and EXAMINE. Both resolve the mailbox,
// emit its status lines, and select it read-write; EXAMINE is not
// enforced as read-only.
func (s *Session) handleSelect(tag string, args []string) {
	if !s.state.Authenticated {
		s.send("%s NO Not authenticated", tag)
		return
	}
	if len(args) < 1 {
		s.send("%s BAD Mailbox name required", tag)
		return
	}

	mailbox, err := s.store.Mailboxes().Find(s.state.Account.ID, args[0])
	if errors.Is(err, store.ErrNotFound) {
		s.send("%s NO Mailbox does not exist", tag)
		return
	}
	if err != nil {
		s.fail(tag, "Select", err)
		return
	}

	messageCount, err := s.store.Messages().Count(mailbox.ID)
	if err != nil {
		s.fail(tag, "Select", err)
		return
	}
	unreadCount, err := s.store.Messages().CountUnread(mailbox.ID)
	if err != nil {
		s.fail(tag, "Select", err)
		return
	}

	s.state.Mailbox = mailbox

	s.send("* %d EXISTS", messageCount)
	s.send("* %d RECENT", unreadCount)
	s.send("* OK [UIDVALIDITY 1] UIDs valid")
	s.send("* OK [UIDNEXT %d] Predicted next UID", messageCount+1)
	s.send(`* FLAGS %s`, permanentFlags)
	s.send("* OK [PERMANENTFLAGS %s] Limited", permanentFlags)
	s.send("%s OK [READ-WRITE] SELECT completed", tag)
}

// handleList emits one LIST line per mailbox of the account. The
// reference and pattern arguments are accepted but not filtered on.
func (s *Session) handleList(tag string) {
	if !s.state.Authenticated {
		s.send("%s NO Not authenticated", tag)
		return
	}

	mailboxes, err := s.store.Mailboxes().List(s.state.Account.ID)
	if err != nil {
		s.fail(tag, "List", err)
		return
	}

	for _, mailbox := range mailboxes {
		s.send(`* LIST (\HasNoChildren) "/" "%s"`, mailbox.Path)
	}
	s.send("%s OK List completed", tag)
}
