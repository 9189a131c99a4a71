package imap

import (
	"log"
	"strconv"
	"strings"

	"heron/internal/models"
	"heron/internal/store"
)

// handleSearch serves SEARCH and UID SEARCH. Both evaluate the same
// criteria against the mailbox snapshot; the result ids are sequence
// numbers for SEARCH and UIDs for UID SEARCH.
func (s *Session) handleSearch(tag string, args []string, uidMode bool) {
	label, completed := "Search", "Search completed"
	if uidMode {
		label, completed = "UID SEARCH", "UID SEARCH completed"
	} else if !s.state.Authenticated || !s.state.Selected() {
		s.send("%s NO Not authenticated or no mailbox selected", tag)
		return
	}

	messages, err := s.store.Messages().List(s.state.Mailbox.ID, store.OrderByArrival)
	if err != nil {
		s.fail(tag, label, err)
		return
	}

	type candidate struct {
		seqNum int
		msg    *models.Message
	}
	candidates := make([]candidate, 0, len(messages))
	for i, msg := range messages {
		candidates = append(candidates, candidate{seqNum: i + 1, msg: msg})
	}

	for i := 0; i < len(args); {
		criterion := strings.ToUpper(args[i])

		switch criterion {
		case "SINCE":
			if i+1 >= len(args) {
				s.send("%s BAD SINCE requires a date", tag)
				return
			}
			since, err := ParseIMAPDate(args[i+1])
			if err != nil {
				s.send("%s BAD Invalid date format: %s", tag, args[i+1])
				return
			}
			sinceMillis := since.UnixMilli()
			kept := candidates[:0]
			for _, c := range candidates {
				if c.msg.Mt >= sinceMillis {
					kept = append(kept, c)
				}
			}
			candidates = kept
			i += 2

		case "UNSEEN":
			kept := candidates[:0]
			for _, c := range candidates {
				if !c.msg.IsRead {
					kept = append(kept, c)
				}
			}
			candidates = kept
			i++

		case "ALL":
			i++

		default:
			log.Printf("Unknown search criterion: %s", criterion)
			i++
		}
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if uidMode {
			ids = append(ids, strconv.FormatInt(c.msg.ID, 10))
		} else {
			ids = append(ids, strconv.Itoa(c.seqNum))
		}
	}

	if len(ids) > 0 {
		s.send("* SEARCH %s", strings.Join(ids, " "))
	} else {
		s.send("* SEARCH")
	}
	s.send("%s OK %s", tag, completed)
}
