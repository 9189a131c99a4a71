package store

import (
	"errors"

	"heron/internal/models"
)

// ErrNotFound is returned by lookups when no row matches. Callers
// distinguish it from real failures with errors.Is.
var ErrNotFound = errors.New("not found")

// MessageOrder selects the ordering used when listing messages.
type MessageOrder string

const (
	// OrderByArrival orders by the message arrival timestamp (mt),
	// oldest first. Sequence numbers are positions in this ordering.
	OrderByArrival MessageOrder = "mt"
	// OrderByID orders by storage id (UID order).
	OrderByID MessageOrder = "id"
)

// AccountStore looks up mail accounts.
type AccountStore interface {
	// FindByUsername returns the active account with the given
	// username, or ErrNotFound.
	FindByUsername(username string) (*models.Account, error)
	// GetOrCreate returns the account with the given username,
	// creating an active passwordless one if missing.
	GetOrCreate(username string) (*models.Account, error)
	// UpdatePassword sets the account's password.
	UpdatePassword(accountID int64, password string) error
}

// MailboxStore manages the mailboxes of an account.
type MailboxStore interface {
	// Find returns the mailbox with the given path for the account,
	// or ErrNotFound.
	Find(accountID int64, path string) (*models.Mailbox, error)
	// List returns all mailboxes of the account ordered by path.
	List(accountID int64) ([]*models.Mailbox, error)
	// GetOrCreate returns the mailbox with the given path, creating
	// it if missing. The display name is the last dot-separated
	// segment of the path.
	GetOrCreate(accountID int64, path string) (*models.Mailbox, error)
}

// MessageStore manages the messages of a mailbox.
type MessageStore interface {
	// List returns the messages of a mailbox in the given order.
	List(mailboxID int64, order MessageOrder) ([]*models.Message, error)
	Count(mailboxID int64) (int, error)
	CountUnread(mailboxID int64) (int, error)
	// SetReadStatus updates isRead for one message of the mailbox.
	// Unknown message ids are a no-op, not an error.
	SetReadStatus(mailboxID, messageID int64, isRead bool) error
	// SetFlaggedStatus updates isFlagged for one message of the mailbox.
	SetFlaggedStatus(mailboxID, messageID int64, isFlagged bool) error
	// Create persists a new message and returns it with its assigned id.
	Create(msg *models.Message) (*models.Message, error)
}

// AttachmentStore manages attachment metadata. Attachment bytes live
// in the blob store, keyed by (BlobBucket, BlobKey).
type AttachmentStore interface {
	ListByMessage(messageID int64) ([]*models.Attachment, error)
	Create(att *models.Attachment) (*models.Attachment, error)
}

// Store bundles the repositories behind one handle.
type Store interface {
	Accounts() AccountStore
	Mailboxes() MailboxStore
	Messages() MessageStore
	Attachments() AttachmentStore
	Close() error
}
