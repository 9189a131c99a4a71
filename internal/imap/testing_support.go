package imap

import (
	"net"
	"strings"
	"testing"
	"time"

	"heron/internal/models"
	"heron/internal/store"
)

// MockConn implements net.Conn for testing. All client input is
// queued up front with AddReadData; Read reports net.ErrClosed once
// the queue is drained, which ends the session loop.
type MockConn struct {
	readBuffer  []byte
	writeBuffer []byte
	readPos     int
	closed      bool
}

func NewMockConn() *MockConn {
	return &MockConn{
		readBuffer:  make([]byte, 0),
		writeBuffer: make([]byte, 0),
	}
}

func (m *MockConn) Read(b []byte) (int, error) {
	if m.readPos >= len(m.readBuffer) {
		return 0, net.ErrClosed
	}
	n := copy(b, m.readBuffer[m.readPos:])
	m.readPos += n
	return n, nil
}

func (m *MockConn) Write(b []byte) (int, error) {
	m.writeBuffer = append(m.writeBuffer, b...)
	return len(b), nil
}

func (m *MockConn) Close() error {
	m.closed = true
	return nil
}

func (m *MockConn) LocalAddr() net.Addr                { return nil }
func (m *MockConn) RemoteAddr() net.Addr               { return nil }
func (m *MockConn) SetDeadline(t time.Time) error      { return nil }
func (m *MockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *MockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *MockConn) GetWrittenData() string {
	return string(m.writeBuffer)
}

func (m *MockConn) ClearWriteBuffer() {
	m.writeBuffer = m.writeBuffer[:0]
}

func (m *MockConn) AddReadData(data string) {
	m.readBuffer = append(m.readBuffer, []byte(data)...)
}

// SetupTestStore opens an in-memory store for one test.
func SetupTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// CreateTestAccount creates an active account with a password.
func CreateTestAccount(t *testing.T, st store.Store, username, password string) *models.Account {
	t.Helper()

	account, err := st.Accounts().GetOrCreate(username)
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	if password != "" {
		if err := st.Accounts().UpdatePassword(account.ID, password); err != nil {
			t.Fatalf("Failed to set test password: %v", err)
		}
		account.Password = password
	}
	return account
}

// CreateTestMailbox creates a mailbox for the account.
func CreateTestMailbox(t *testing.T, st store.Store, accountID int64, path string) *models.Mailbox {
	t.Helper()

	mailbox, err := st.Mailboxes().GetOrCreate(accountID, path)
	if err != nil {
		t.Fatalf("Failed to create test mailbox %s: %v", path, err)
	}
	return mailbox
}

// InsertTestMessage stores one message in the mailbox and returns it
// with its assigned id.
func InsertTestMessage(t *testing.T, st store.Store, mailboxID int64, subject string, isRead, isFlagged bool, mt int64) *models.Message {
	t.Helper()

	msg, err := st.Messages().Create(&models.Message{
		MailboxID:   mailboxID,
		MessageID:   "<" + subject + "@test.local>",
		Subject:     subject,
		FromAddress: "sender@test.local",
		ToAddresses: "recipient@test.local",
		TextBody:    "Body of " + subject,
		Size:        int64(len(subject)) + 64,
		IsRead:      isRead,
		IsFlagged:   isFlagged,
		Mt:          mt,
	})
	if err != nil {
		t.Fatalf("Failed to insert test message: %v", err)
	}
	return msg
}

// RunSession feeds the given command lines to a fresh session over a
// MockConn and returns every response line the server wrote.
func RunSession(t *testing.T, st store.Store, commands ...string) []string {
	t.Helper()

	conn := NewMockConn()
	for _, cmd := range commands {
		conn.AddReadData(cmd + "\r\n")
	}

	session := NewSession(conn, st, 0)
	if err := session.Handle(); err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	raw := strings.TrimRight(conn.GetWrittenData(), "\r\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\r\n")
}

// ResponsesContain reports whether any response line contains the
// given substring.
func ResponsesContain(responses []string, substring string) bool {
	for _, line := range responses {
		if strings.Contains(line, substring) {
			return true
		}
	}
	return false
}
