package imap

import (
	"strings"

	"heron/internal/models"
	"heron/internal/store"
)

type storeMode int

const (
	storeAdd storeMode = iota
	storeRemove
	storeReplace
)

type storeOp struct {
	mode    storeMode
	silent  bool
	seen    bool
	flagged bool
}

// parseStoreOp interprets the flags item and flag list of a STORE
// command ("+FLAGS (\Seen)", "-FLAGS.SILENT (\Flagged)", ...).
func parseStoreOp(args []string) (storeOp, bool) {
	var op storeOp

	item := strings.ToUpper(args[0])
	if strings.HasSuffix(item, ".SILENT") {
		op.silent = true
		item = strings.TrimSuffix(item, ".SILENT")
	}

	switch item {
	case "+FLAGS":
		op.mode = storeAdd
	case "-FLAGS":
		op.mode = storeRemove
	case "FLAGS":
		op.mode = storeReplace
	default:
		return op, false
	}

	flagList := strings.Join(args[1:], " ")
	op.seen = strings.Contains(flagList, `\Seen`)
	op.flagged = strings.Contains(flagList, `\Flagged`)
	return op, true
}

func (s *Session) handleStore(tag string, args []string, uidMode bool) {
	label, completed := "Store", "Store completed"
	if uidMode {
		label, completed = "UID STORE", "UID STORE completed"
	} else if !s.state.Authenticated || !s.state.Selected() {
		s.send("%s NO Not authenticated or no mailbox selected", tag)
		return
	}

	if len(args) < 2 {
		if uidMode {
			s.send("%s BAD UID STORE command requires sequence and flags", tag)
		} else {
			s.send("%s BAD STORE command requires sequence and flags", tag)
		}
		return
	}

	seqSet := ParseSequenceSet(args[0])
	if seqSet.Empty() {
		if uidMode {
			s.send("%s BAD Invalid UID sequence", tag)
		} else {
			s.send("%s BAD Invalid sequence", tag)
		}
		return
	}

	op, ok := parseStoreOp(args[1:])
	if !ok {
		s.send("%s BAD Invalid STORE flags item: %s", tag, args[1])
		return
	}

	messages, err := s.store.Messages().List(s.state.Mailbox.ID, store.OrderByArrival)
	if err != nil {
		s.fail(tag, label, err)
		return
	}

	lastUID := 0
	if len(messages) > 0 {
		lastUID = int(messages[len(messages)-1].ID)
	}

	for i, msg := range messages {
		seqNum := i + 1
		if uidMode {
			if !seqSet.Matches(int(msg.ID), lastUID) {
				continue
			}
		} else if !seqSet.Matches(seqNum, len(messages)) {
			continue
		}

		if err := s.applyStore(msg, op); err != nil {
			s.fail(tag, label, err)
			return
		}

		if !op.silent {
			if uidMode {
				s.send("* %d FETCH (UID %d FLAGS %s)", seqNum, msg.ID, FlagList(msg))
			} else {
				s.send("* %d FETCH (FLAGS %s)", seqNum, FlagList(msg))
			}
		}
	}

	s.send("%s OK %s", tag, completed)
}

// applyStore mutates one message's stored flags and mirrors the
// result onto the in-memory copy so the untagged FETCH reply reflects
// the new state.
func (s *Session) applyStore(msg *models.Message, op storeOp) error {
	messages := s.store.Messages()

	switch op.mode {
	case storeAdd:
		if op.seen {
			if err := messages.SetReadStatus(msg.MailboxID, msg.ID, true); err != nil {
				return err
			}
			msg.IsRead = true
		}
		if op.flagged {
			if err := messages.SetFlaggedStatus(msg.MailboxID, msg.ID, true); err != nil {
				return err
			}
			msg.IsFlagged = true
		}
	case storeRemove:
		if op.seen {
			if err := messages.SetReadStatus(msg.MailboxID, msg.ID, false); err != nil {
				return err
			}
			msg.IsRead = false
		}
		if op.flagged {
			if err := messages.SetFlaggedStatus(msg.MailboxID, msg.ID, false); err != nil {
				return err
			}
			msg.IsFlagged = false
		}
	case storeReplace:
		if err := messages.SetReadStatus(msg.MailboxID, msg.ID, op.seen); err != nil {
			return err
		}
		if err := messages.SetFlaggedStatus(msg.MailboxID, msg.ID, op.flagged); err != nil {
			return err
		}
		msg.IsRead = op.seen
		msg.IsFlagged = op.flagged
	}
	return nil
}
