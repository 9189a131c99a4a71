package models

// Account is a mail account that can authenticate over IMAP and
// receive mail over SMTP.
type Account struct {
	ID       int64
	Username string
	Password string
	Domain   string
	IsActive bool
	Ct       int64 // created, UNIX milliseconds
	Ut       int64 // updated, UNIX milliseconds
}

// Mailbox is a folder scoped to exactly one account. Path is the
// hierarchical IMAP name (e.g. "INBOX.Sent"), Name the display name
// derived from the last dot-separated segment of Path.
type Mailbox struct {
	ID        int64
	AccountID int64
	Path      string
	Name      string
	Ct        int64
	Ut        int64
}

// Message is one stored message. Its database ID doubles as the IMAP
// UID for its lifetime in the mailbox.
type Message struct {
	ID           int64
	MailboxID    int64
	MessageID    string // RFC822 Message-ID header value
	Subject      string
	FromAddress  string
	ToAddresses  string
	CcAddresses  string
	BccAddresses string
	TextBody     string
	HTMLBody     string
	Size         int64
	IsRead       bool
	IsFlagged    bool
	Mt           int64 // message arrival time, UNIX milliseconds
	Ct           int64
	Ut           int64
}

// Attachment records metadata for one attachment; the bytes live in
// the blob store under (BlobBucket, BlobKey).
type Attachment struct {
	ID                 int64
	MessageID          int64
	Filename           string
	ContentType        string
	ContentDisposition string
	ContentID          string
	Size               int64
	BlobBucket         string
	BlobKey            string
	Ct                 int64
}
