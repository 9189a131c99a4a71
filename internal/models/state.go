package models

// ClientState is the per-connection IMAP session state. It is created
// on connect, mutated by LOGIN/AUTHENTICATE and SELECT, and discarded
// when the connection closes. Never persisted.
type ClientState struct {
	Authenticated bool
	Account       *Account
	Mailbox       *Mailbox // currently selected mailbox, nil until SELECT
}

// Selected reports whether a mailbox is currently selected.
func (s *ClientState) Selected() bool {
	return s.Mailbox != nil
}
