package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"heron/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Concurrent sessions share this one handle; SQLite serializes
	// writers itself, but a busy timeout avoids spurious SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mail_account (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		ct INTEGER NOT NULL DEFAULT 0,
		ut INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS mailbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		ct INTEGER NOT NULL DEFAULT 0,
		ut INTEGER NOT NULL DEFAULT 0,
		UNIQUE(account_id, path)
	);
	CREATE INDEX IF NOT EXISTS idx_mailbox_account ON mailbox(account_id);

	CREATE TABLE IF NOT EXISTS mail_message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mailbox_id INTEGER NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		from_address TEXT NOT NULL DEFAULT '',
		to_addresses TEXT NOT NULL DEFAULT '',
		cc_addresses TEXT NOT NULL DEFAULT '',
		bcc_addresses TEXT NOT NULL DEFAULT '',
		text_body TEXT NOT NULL DEFAULT '',
		html_body TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		is_read INTEGER NOT NULL DEFAULT 0,
		is_flagged INTEGER NOT NULL DEFAULT 0,
		mt INTEGER NOT NULL DEFAULT 0,
		ct INTEGER NOT NULL DEFAULT 0,
		ut INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_message_mailbox ON mail_message(mailbox_id);
	CREATE INDEX IF NOT EXISTS idx_message_mt ON mail_message(mt);

	CREATE TABLE IF NOT EXISTS mail_attachment (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		content_disposition TEXT NOT NULL DEFAULT 'attachment',
		content_id TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		blob_bucket TEXT NOT NULL DEFAULT '',
		blob_key TEXT NOT NULL DEFAULT '',
		ct INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_attachment_message ON mail_attachment(message_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Accounts() AccountStore       { return (*sqliteAccounts)(s) }
func (s *SQLiteStore) Mailboxes() MailboxStore      { return (*sqliteMailboxes)(s) }
func (s *SQLiteStore) Messages() MessageStore       { return (*sqliteMessages)(s) }
func (s *SQLiteStore) Attachments() AttachmentStore { return (*sqliteAttachments)(s) }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nowMillis returns the current time as UNIX milliseconds, the
// timestamp unit used throughout the schema.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// ===== Accounts =====

type sqliteAccounts SQLiteStore

func (s *sqliteAccounts) FindByUsername(username string) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, username, password, domain, is_active, ct, ut
		FROM mail_account
		WHERE username = ? AND is_active = 1
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *sqliteAccounts) GetOrCreate(username string) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, username, password, domain, is_active, ct, ut
		FROM mail_account
		WHERE username = ?
	`, username)

	account, err := scanAccount(row)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", err)
	}

	domain := ""
	if at := strings.LastIndex(username, "@"); at != -1 {
		domain = username[at+1:]
	}

	now := nowMillis()
	res, err := s.db.Exec(`
		INSERT INTO mail_account (username, password, domain, is_active, ct, ut)
		VALUES (?, '', ?, 1, ?, ?)
	`, username, domain, now, now)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Account{
		ID:       id,
		Username: username,
		Domain:   domain,
		IsActive: true,
		Ct:       now,
		Ut:       now,
	}, nil
}

func (s *sqliteAccounts) UpdatePassword(accountID int64, password string) error {
	_, err := s.db.Exec(`
		UPDATE mail_account SET password = ?, ut = ? WHERE id = ?
	`, password, nowMillis(), accountID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var active int
	if err := row.Scan(&a.ID, &a.Username, &a.Password, &a.Domain, &active, &a.Ct, &a.Ut); err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	return &a, nil
}

// ===== Mailboxes =====

type sqliteMailboxes SQLiteStore

func (s *sqliteMailboxes) Find(accountID int64, path string) (*models.Mailbox, error) {
	row := s.db.QueryRow(`
		SELECT id, account_id, name, path, ct, ut
		FROM mailbox
		WHERE account_id = ? AND path = ?
	`, accountID, path)

	var m models.Mailbox
	err := row.Scan(&m.ID, &m.AccountID, &m.Name, &m.Path, &m.Ct, &m.Ut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find mailbox: %w", err)
	}
	return &m, nil
}

func (s *sqliteMailboxes) List(accountID int64) ([]*models.Mailbox, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, name, path, ct, ut
		FROM mailbox
		WHERE account_id = ?
		ORDER BY path
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	defer rows.Close()

	var mailboxes []*models.Mailbox
	for rows.Next() {
		var m models.Mailbox
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Name, &m.Path, &m.Ct, &m.Ut); err != nil {
			return nil, err
		}
		mailboxes = append(mailboxes, &m)
	}
	return mailboxes, rows.Err()
}

func (s *sqliteMailboxes) GetOrCreate(accountID int64, path string) (*models.Mailbox, error) {
	mailbox, err := s.Find(accountID, path)
	if err == nil {
		return mailbox, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	name := MailboxNameFromPath(path)
	now := nowMillis()
	res, err := s.db.Exec(`
		INSERT INTO mailbox (account_id, name, path, ct, ut)
		VALUES (?, ?, ?, ?, ?)
	`, accountID, name, path, now, now)
	if err != nil {
		// Lost a race with a concurrent creator; re-read.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return s.Find(accountID, path)
		}
		return nil, fmt.Errorf("create mailbox: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Mailbox{
		ID:        id,
		AccountID: accountID,
		Name:      name,
		Path:      path,
		Ct:        now,
		Ut:        now,
	}, nil
}

// MailboxNameFromPath derives the display name from an IMAP
// hierarchical path: the segment after the last dot, or the whole
// path when it has no dots ("INBOX.Sent" -> "Sent").
func MailboxNameFromPath(path string) string {
	if idx := strings.LastIndex(path, "."); idx != -1 && idx+1 < len(path) {
		return path[idx+1:]
	}
	return path
}

// ===== Messages =====

type sqliteMessages SQLiteStore

const messageColumns = `id, mailbox_id, message_id, subject, from_address, to_addresses,
	cc_addresses, bcc_addresses, text_body, html_body, size, is_read, is_flagged, mt, ct, ut`

func (s *sqliteMessages) List(mailboxID int64, order MessageOrder) ([]*models.Message, error) {
	orderBy := "mt"
	if order == OrderByID {
		orderBy = "id"
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s FROM mail_message
		WHERE mailbox_id = ?
		ORDER BY %s, id
	`, messageColumns, orderBy), mailboxID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *sqliteMessages) Count(mailboxID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM mail_message WHERE mailbox_id = ?
	`, mailboxID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (s *sqliteMessages) CountUnread(mailboxID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM mail_message WHERE mailbox_id = ? AND is_read = 0
	`, mailboxID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *sqliteMessages) SetReadStatus(mailboxID, messageID int64, isRead bool) error {
	_, err := s.db.Exec(`
		UPDATE mail_message SET is_read = ?, ut = ?
		WHERE mailbox_id = ? AND id = ?
	`, boolToInt(isRead), nowMillis(), mailboxID, messageID)
	if err != nil {
		return fmt.Errorf("set read status: %w", err)
	}
	return nil
}

func (s *sqliteMessages) SetFlaggedStatus(mailboxID, messageID int64, isFlagged bool) error {
	_, err := s.db.Exec(`
		UPDATE mail_message SET is_flagged = ?, ut = ?
		WHERE mailbox_id = ? AND id = ?
	`, boolToInt(isFlagged), nowMillis(), mailboxID, messageID)
	if err != nil {
		return fmt.Errorf("set flagged status: %w", err)
	}
	return nil
}

func (s *sqliteMessages) Create(msg *models.Message) (*models.Message, error) {
	now := nowMillis()
	if msg.Mt == 0 {
		msg.Mt = now
	}
	msg.Ct = now
	msg.Ut = now

	res, err := s.db.Exec(`
		INSERT INTO mail_message (mailbox_id, message_id, subject, from_address,
			to_addresses, cc_addresses, bcc_addresses, text_body, html_body,
			size, is_read, is_flagged, mt, ct, ut)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.MailboxID, msg.MessageID, msg.Subject, msg.FromAddress,
		msg.ToAddresses, msg.CcAddresses, msg.BccAddresses, msg.TextBody, msg.HTMLBody,
		msg.Size, boolToInt(msg.IsRead), boolToInt(msg.IsFlagged), msg.Mt, msg.Ct, msg.Ut)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var isRead, isFlagged int
	err := row.Scan(&m.ID, &m.MailboxID, &m.MessageID, &m.Subject, &m.FromAddress,
		&m.ToAddresses, &m.CcAddresses, &m.BccAddresses, &m.TextBody, &m.HTMLBody,
		&m.Size, &isRead, &isFlagged, &m.Mt, &m.Ct, &m.Ut)
	if err != nil {
		return nil, err
	}
	m.IsRead = isRead != 0
	m.IsFlagged = isFlagged != 0
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ===== Attachments =====

type sqliteAttachments SQLiteStore

func (s *sqliteAttachments) ListByMessage(messageID int64) ([]*models.Attachment, error) {
	rows, err := s.db.Query(`
		SELECT id, message_id, filename, content_type, content_disposition,
			content_id, size, blob_bucket, blob_key, ct
		FROM mail_attachment
		WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType,
			&a.ContentDisposition, &a.ContentID, &a.Size, &a.BlobBucket, &a.BlobKey, &a.Ct)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}

func (s *sqliteAttachments) Create(att *models.Attachment) (*models.Attachment, error) {
	att.Ct = nowMillis()
	res, err := s.db.Exec(`
		INSERT INTO mail_attachment (message_id, filename, content_type,
			content_disposition, content_id, size, blob_bucket, blob_key, ct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, att.MessageID, att.Filename, att.ContentType,
		att.ContentDisposition, att.ContentID, att.Size, att.BlobBucket, att.BlobKey, att.Ct)
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	att.ID = id
	return att, nil
}
