package imap

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"heron/internal/store"
)

func TestSessionGreetingAndCapability(t *testing.T) {
	st := SetupTestStore(t)

	responses := RunSession(t, st, "a1 CAPABILITY")

	if len(responses) == 0 || responses[0] != "* OK IMAP server ready" {
		t.Fatalf("Expected greeting first, got %v", responses)
	}
	if !ResponsesContain(responses, "* CAPABILITY IMAP4rev1 UIDPLUS ENABLE SASL-IR AUTH=PLAIN") {
		t.Errorf("Missing capability line in %v", responses)
	}
	if !ResponsesContain(responses, "a1 OK Capability completed") {
		t.Errorf("Missing tagged OK in %v", responses)
	}
}

func TestSessionEmptyCommand(t *testing.T) {
	st := SetupTestStore(t)

	responses := RunSession(t, st, "", "a1 CAPABILITY")

	if !ResponsesContain(responses, "* BAD Empty command") {
		t.Errorf("Expected untagged BAD for empty line, got %v", responses)
	}
	if !ResponsesContain(responses, "a1 OK Capability completed") {
		t.Error("Session must stay usable after an empty command")
	}
}

func TestSessionUnknownCommand(t *testing.T) {
	st := SetupTestStore(t)

	responses := RunSession(t, st, "a1 FROBNICATE")

	if !ResponsesContain(responses, "a1 BAD Unknown command: FROBNICATE") {
		t.Errorf("Expected BAD for unknown command, got %v", responses)
	}
}

func TestSessionLogin(t *testing.T) {
	st := SetupTestStore(t)
	CreateTestAccount(t, st, "alice@example.com", "secret")
	noPass := CreateTestAccount(t, st, "nopass@example.com", "")
	_ = noPass

	tests := []struct {
		name     string
		command  string
		expected string
	}{
		{"success", "a1 LOGIN alice@example.com secret", "a1 OK Login successful"},
		{"wrong password", "a1 LOGIN alice@example.com wrong", "a1 NO Login failed: authentication failed"},
		{"unknown account", "a1 LOGIN ghost@example.com secret", "a1 NO Login failed: account not found"},
		{"no password set", "a1 LOGIN nopass@example.com x", "a1 NO Login failed: account has no password set"},
		{"missing args", "a1 LOGIN alice@example.com", "a1 BAD Login command requires username and password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := RunSession(t, st, tt.command)
			if !ResponsesContain(responses, tt.expected) {
				t.Errorf("Expected %q, got %v", tt.expected, responses)
			}
		})
	}
}

func TestSessionAuthenticatePlain(t *testing.T) {
	st := SetupTestStore(t)
	CreateTestAccount(t, st, "alice@example.com", "secret")

	initial := base64.StdEncoding.EncodeToString([]byte("\x00alice@example.com\x00secret"))

	// SASL-IR: credentials inline with the command.
	responses := RunSession(t, st, "a1 AUTHENTICATE PLAIN "+initial, "a2 SELECT INBOX")
	if !ResponsesContain(responses, "a1 OK Authenticate completed") {
		t.Errorf("Expected authenticate OK, got %v", responses)
	}

	// Continuation exchange: mechanism first, credentials on the
	// following line.
	responses = RunSession(t, st, "a1 AUTHENTICATE PLAIN", initial)
	if !ResponsesContain(responses, "a1 OK Authenticate completed") {
		t.Errorf("Expected authenticate OK over continuation, got %v", responses)
	}
	if !ResponsesContain(responses, "+") {
		t.Errorf("Expected continuation request, got %v", responses)
	}

	bad := base64.StdEncoding.EncodeToString([]byte("\x00alice@example.com\x00wrong"))
	responses = RunSession(t, st, "a1 AUTHENTICATE PLAIN "+bad)
	if !ResponsesContain(responses, "a1 NO Authenticate failed: authentication failed") {
		t.Errorf("Expected authenticate failure, got %v", responses)
	}
}

func TestSessionSelect(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	InsertTestMessage(t, st, inbox.ID, "first", true, false, 1000)
	InsertTestMessage(t, st, inbox.ID, "second", true, false, 2000)
	InsertTestMessage(t, st, inbox.ID, "third", false, false, 3000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX")

	for _, expected := range []string{
		"* 3 EXISTS",
		"* 1 RECENT",
		"* OK [UIDVALIDITY 1] UIDs valid",
		"* OK [UIDNEXT 4] Predicted next UID",
		`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
		`* OK [PERMANENTFLAGS (\Answered \Flagged \Deleted \Seen \Draft)] Limited`,
		"a2 OK [READ-WRITE] SELECT completed",
	} {
		if !ResponsesContain(responses, expected) {
			t.Errorf("Missing %q in %v", expected, responses)
		}
	}
}

func TestSessionSelectErrors(t *testing.T) {
	st := SetupTestStore(t)
	CreateTestAccount(t, st, "alice@example.com", "secret")

	responses := RunSession(t, st, "a1 SELECT INBOX")
	if !ResponsesContain(responses, "a1 NO Not authenticated") {
		t.Errorf("Expected NO before login, got %v", responses)
	}

	responses = RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT",
		"a3 SELECT Missing")
	if !ResponsesContain(responses, "a2 BAD Mailbox name required") {
		t.Errorf("Expected BAD for missing name, got %v", responses)
	}
	if !ResponsesContain(responses, "a3 NO Mailbox does not exist") {
		t.Errorf("Expected NO for unknown mailbox, got %v", responses)
	}
}

func TestSessionExamineSelectsMailbox(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 EXAMINE INBOX")

	if !ResponsesContain(responses, "a2 OK [READ-WRITE] SELECT completed") {
		t.Errorf("Expected EXAMINE to complete like SELECT, got %v", responses)
	}
}

func TestSessionList(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")
	CreateTestMailbox(t, st, account.ID, "INBOX.Sent")

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		`a2 LIST "" "*"`)

	if !ResponsesContain(responses, `* LIST (\HasNoChildren) "/" "INBOX"`) {
		t.Errorf("Missing INBOX list line in %v", responses)
	}
	if !ResponsesContain(responses, `* LIST (\HasNoChildren) "/" "INBOX.Sent"`) {
		t.Errorf("Missing INBOX.Sent list line in %v", responses)
	}
	if !ResponsesContain(responses, "a2 OK List completed") {
		t.Errorf("Missing tagged OK in %v", responses)
	}
}

func TestSessionFetchSummary(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	InsertTestMessage(t, st, inbox.ID, "first", false, false, 1000)
	InsertTestMessage(t, st, inbox.ID, "second", false, true, 2000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 FETCH 2 (FLAGS RFC822.SIZE)")

	if !ResponsesContain(responses, `* 2 FETCH (FLAGS (\Flagged)`) {
		t.Errorf("Expected FETCH line for message 2, got %v", responses)
	}
	if !ResponsesContain(responses, "a3 OK Fetch completed") {
		t.Errorf("Missing tagged OK in %v", responses)
	}
}

func TestSessionFetchErrors(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")

	responses := RunSession(t, st, "a1 FETCH 1 (FLAGS)")
	if !ResponsesContain(responses, "a1 NO Not authenticated or no mailbox selected") {
		t.Errorf("Expected precondition NO, got %v", responses)
	}

	responses = RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 FETCH 1",
		"a4 FETCH abc (FLAGS)",
		"a5 FETCH 5:9 (FLAGS)")
	if !ResponsesContain(responses, "a3 BAD FETCH command requires sequence and data items") {
		t.Errorf("Expected BAD for missing items, got %v", responses)
	}
	if !ResponsesContain(responses, "a4 BAD Invalid sequence") {
		t.Errorf("Expected BAD for garbage sequence, got %v", responses)
	}
	// Addressing that matches nothing is OK, never an error.
	if !ResponsesContain(responses, "a5 OK Fetch completed") {
		t.Errorf("Expected OK for no-match range, got %v", responses)
	}
}

func TestSessionUIDFetchFlags(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	InsertTestMessage(t, st, inbox.ID, "plain", true, false, 1000)
	flagged := InsertTestMessage(t, st, inbox.ID, "flagged", false, true, 2000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		fmt.Sprintf("A3 UID FETCH %d (FLAGS)", flagged.ID))

	expected := fmt.Sprintf(`UID %d FLAGS (\Flagged)`, flagged.ID)
	if !ResponsesContain(responses, expected) {
		t.Errorf("Expected %q in %v", expected, responses)
	}
	if !ResponsesContain(responses, "A3 OK UID FETCH completed") {
		t.Errorf("Missing tagged OK in %v", responses)
	}
	for _, line := range responses {
		if strings.Contains(line, "UID,") || strings.Contains(line, fmt.Sprintf("UID %d,", flagged.ID)) {
			t.Errorf("UID item must not be comma-joined: %q", line)
		}
	}
}

func TestSessionUIDFetchRangeAndErrors(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	first := InsertTestMessage(t, st, inbox.ID, "first", false, false, 1000)
	second := InsertTestMessage(t, st, inbox.ID, "second", false, false, 2000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		fmt.Sprintf("a3 UID FETCH %d:* (FLAGS)", first.ID),
		"a4 UID FETCH abc (FLAGS)",
		"a5 UID FETCH 1",
		"a6 UID")

	if !ResponsesContain(responses, fmt.Sprintf("UID %d", first.ID)) ||
		!ResponsesContain(responses, fmt.Sprintf("UID %d", second.ID)) {
		t.Errorf("Expected both messages in open range, got %v", responses)
	}
	if !ResponsesContain(responses, "a4 BAD Invalid UID sequence") {
		t.Errorf("Expected BAD for garbage UID sequence, got %v", responses)
	}
	if !ResponsesContain(responses, "a5 BAD UID FETCH command requires UID sequence and data items") {
		t.Errorf("Expected BAD for missing items, got %v", responses)
	}
	if !ResponsesContain(responses, "a6 BAD UID command requires subcommand") {
		t.Errorf("Expected BAD for bare UID, got %v", responses)
	}
}

func TestSessionUIDSubcommandNotSupported(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 UID COPY 1 Trash")

	if !ResponsesContain(responses, "a3 BAD UID subcommand not supported: COPY") {
		t.Errorf("Expected BAD for unsupported subcommand, got %v", responses)
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	msg := InsertTestMessage(t, st, inbox.ID, "subject", false, false, 1000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		`a3 STORE 1 +FLAGS (\Seen)`,
		fmt.Sprintf(`a4 UID STORE %d -FLAGS (\Seen)`, msg.ID))

	if !ResponsesContain(responses, "a3 OK Store completed") {
		t.Errorf("Missing STORE OK in %v", responses)
	}
	if !ResponsesContain(responses, "a4 OK UID STORE completed") {
		t.Errorf("Missing UID STORE OK in %v", responses)
	}
	if !ResponsesContain(responses, `* 1 FETCH (FLAGS (\Seen))`) {
		t.Errorf("Expected untagged FETCH after STORE, got %v", responses)
	}

	// -FLAGS after +FLAGS restores the original read state.
	messages, err := st.Messages().List(inbox.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if messages[0].IsRead {
		t.Error("Expected message unread after STORE round-trip")
	}
}

func TestSessionStoreSilentAndFlagged(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	InsertTestMessage(t, st, inbox.ID, "subject", false, false, 1000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		`a3 STORE 1 +FLAGS.SILENT (\Flagged)`)

	if !ResponsesContain(responses, "a3 OK Store completed") {
		t.Errorf("Missing STORE OK in %v", responses)
	}
	for _, line := range responses {
		if strings.HasPrefix(line, "* 1 FETCH") {
			t.Errorf("SILENT store must not emit untagged FETCH: %q", line)
		}
	}

	messages, err := st.Messages().List(inbox.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !messages[0].IsFlagged {
		t.Error("Expected message flagged after silent STORE")
	}
}

func TestSessionStoreErrors(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 STORE 1",
		`a4 UID STORE 1`,
		`a5 STORE 99 +FLAGS (\Seen)`)

	if !ResponsesContain(responses, "a3 BAD STORE command requires sequence and flags") {
		t.Errorf("Expected BAD for missing flags, got %v", responses)
	}
	if !ResponsesContain(responses, "a4 BAD UID STORE command requires sequence and flags") {
		t.Errorf("Expected BAD for missing UID STORE flags, got %v", responses)
	}
	if !ResponsesContain(responses, "a5 OK Store completed") {
		t.Errorf("Expected OK for no-match store, got %v", responses)
	}
}

func TestSessionSearch(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	// Shift message ids away from sequence numbers so the two result
	// spaces are distinguishable.
	archive := CreateTestMailbox(t, st, account.ID, "Archive")
	InsertTestMessage(t, st, archive.ID, "padding", true, false, 1000)
	// 2024-01-01 and 2024-03-01, the second unread.
	InsertTestMessage(t, st, inbox.ID, "old", true, false, 1704067200000)
	recent := InsertTestMessage(t, st, inbox.ID, "recent", false, false, 1709251200000)

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 SEARCH UNSEEN",
		"a4 UID SEARCH SINCE 01-Feb-2024",
		"a5 SEARCH UNSEEN SINCE 01-Apr-2024")

	if !ResponsesContain(responses, "* SEARCH 2") {
		t.Errorf("Expected sequence number result for UNSEEN, got %v", responses)
	}
	if !ResponsesContain(responses, fmt.Sprintf("* SEARCH %d", recent.ID)) {
		t.Errorf("Expected UID result for SINCE, got %v", responses)
	}
	if !ResponsesContain(responses, "a3 OK Search completed") ||
		!ResponsesContain(responses, "a4 OK UID SEARCH completed") {
		t.Errorf("Missing tagged OKs in %v", responses)
	}

	// No matches yields a bare untagged SEARCH, still OK.
	bare := false
	for _, line := range responses {
		if line == "* SEARCH" {
			bare = true
		}
	}
	if !bare || !ResponsesContain(responses, "a5 OK Search completed") {
		t.Errorf("Expected bare '* SEARCH' with OK for zero matches, got %v", responses)
	}
}

func TestSessionSearchDateErrors(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	CreateTestMailbox(t, st, account.ID, "INBOX")

	responses := RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 SEARCH SINCE",
		"a4 SEARCH SINCE notadate")

	if !ResponsesContain(responses, "a3 BAD SINCE requires a date") {
		t.Errorf("Expected BAD for missing date, got %v", responses)
	}
	if !ResponsesContain(responses, "a4 BAD Invalid date format: notadate") {
		t.Errorf("Expected BAD for bad date, got %v", responses)
	}
}

func TestSessionAppendQuotedString(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")

	message := "Subject: Hello\r\nFrom: alice@example.com\r\nTo: bob@example.com\r\n\r\nBody text"

	// Drive the handler with pre-split arguments, the shape a quoted
	// message argument takes after tokenizing.
	conn := NewMockConn()
	session := NewSession(conn, st, 0)
	session.state.Authenticated = true
	session.state.Account = account
	session.handleAppend("a2", []string{"Sent", message})

	if !strings.Contains(conn.GetWrittenData(), "a2 OK APPEND completed") {
		t.Fatalf("Expected APPEND OK, got %q", conn.GetWrittenData())
	}

	// APPEND creates the mailbox when missing.
	sent, err := st.Mailboxes().Find(account.ID, "Sent")
	if err != nil {
		t.Fatalf("Expected Sent mailbox to exist: %v", err)
	}

	messages, err := st.Messages().List(sent.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].Subject != "Hello" {
		t.Errorf("Expected subject 'Hello', got '%s'", messages[0].Subject)
	}
	if messages[0].IsRead {
		t.Error("Expected appended message unread by default")
	}
}

func TestSessionAppendLiteralWithFlags(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")

	message := "Subject: Literal\r\nFrom: alice@example.com\r\nTo: bob@example.com\r\n\r\nLiteral body"

	conn := NewMockConn()
	conn.AddReadData("a1 LOGIN alice@example.com secret\r\n")
	conn.AddReadData(fmt.Sprintf("a2 APPEND Drafts (\\Seen) {%d}\r\n", len(message)))
	conn.AddReadData(message + "\r\n")
	conn.AddReadData("a3 LOGOUT\r\n")

	session := NewSession(conn, st, 0)
	if err := session.Handle(); err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	written := conn.GetWrittenData()
	if !strings.Contains(written, "+ Ready for literal data") {
		t.Errorf("Expected continuation before literal, got %q", written)
	}
	if !strings.Contains(written, "a2 OK APPEND completed") {
		t.Fatalf("Expected APPEND OK, got %q", written)
	}

	drafts, err := st.Mailboxes().Find(account.ID, "Drafts")
	if err != nil {
		t.Fatalf("Expected Drafts mailbox to exist: %v", err)
	}
	messages, err := st.Messages().List(drafts.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].Subject != "Literal" {
		t.Errorf("Expected subject 'Literal', got '%s'", messages[0].Subject)
	}
	if !messages[0].IsRead {
		t.Error("Expected \\Seen flag applied on append")
	}
}

func TestSessionAppendMultiFlagList(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")

	message := "Subject: Multi\r\n\r\nBody"

	conn := NewMockConn()
	conn.AddReadData("a1 LOGIN alice@example.com secret\r\n")
	conn.AddReadData(fmt.Sprintf("a2 APPEND Drafts (\\Flagged \\Seen) {%d}\r\n", len(message)))
	conn.AddReadData(message + "\r\n")
	conn.AddReadData("a3 LOGOUT\r\n")

	session := NewSession(conn, st, 0)
	if err := session.Handle(); err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	if !strings.Contains(conn.GetWrittenData(), "a2 OK APPEND completed") {
		t.Fatalf("Expected APPEND OK, got %q", conn.GetWrittenData())
	}

	drafts, err := st.Mailboxes().Find(account.ID, "Drafts")
	if err != nil {
		t.Fatalf("Expected Drafts mailbox to exist: %v", err)
	}
	messages, err := st.Messages().List(drafts.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	// \Seen must be honored when it is not the only flag in the list.
	if !messages[0].IsRead {
		t.Error("Expected \\Seen applied from multi-flag list")
	}
}

func TestSessionAppendErrors(t *testing.T) {
	st := SetupTestStore(t)
	CreateTestAccount(t, st, "alice@example.com", "secret")

	responses := RunSession(t, st, `a1 APPEND Sent "x"`)
	if !ResponsesContain(responses, "a1 NO Not authenticated") {
		t.Errorf("Expected NO before login, got %v", responses)
	}

	responses = RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 APPEND",
		"a3 APPEND Sent")
	if !ResponsesContain(responses, "a2 BAD APPEND command requires mailbox name") {
		t.Errorf("Expected BAD for missing mailbox, got %v", responses)
	}
	if !ResponsesContain(responses, "a3 BAD APPEND command requires message data") {
		t.Errorf("Expected BAD for missing data, got %v", responses)
	}
}

func TestSessionLogout(t *testing.T) {
	st := SetupTestStore(t)

	responses := RunSession(t, st, "a1 LOGOUT", "a2 CAPABILITY")

	if !ResponsesContain(responses, "* BYE IMAP server logging out") {
		t.Errorf("Expected BYE, got %v", responses)
	}
	if !ResponsesContain(responses, "a1 OK Logout completed") {
		t.Errorf("Expected tagged OK, got %v", responses)
	}
	// The session ends at LOGOUT; the next command is never served.
	if ResponsesContain(responses, "a2 OK") {
		t.Errorf("Session must end on LOGOUT, got %v", responses)
	}
}

func TestSessionFetchBodyMarksSeen(t *testing.T) {
	st := SetupTestStore(t)
	account := CreateTestAccount(t, st, "alice@example.com", "secret")
	inbox := CreateTestMailbox(t, st, account.ID, "INBOX")
	InsertTestMessage(t, st, inbox.ID, "subject", false, false, 1000)

	RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 FETCH 1 (BODY[])")

	messages, err := st.Messages().List(inbox.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !messages[0].IsRead {
		t.Error("Expected BODY[] fetch to mark the message seen")
	}

	// BODY.PEEK[] must not touch the flag.
	if err := st.Messages().SetReadStatus(inbox.ID, messages[0].ID, false); err != nil {
		t.Fatalf("SetReadStatus failed: %v", err)
	}
	RunSession(t, st,
		"a1 LOGIN alice@example.com secret",
		"a2 SELECT INBOX",
		"a3 FETCH 1 (BODY.PEEK[])")

	messages, err = st.Messages().List(inbox.ID, store.OrderByArrival)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if messages[0].IsRead {
		t.Error("Expected BODY.PEEK[] fetch to leave the message unread")
	}
}
