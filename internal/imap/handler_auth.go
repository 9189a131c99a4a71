package imap

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/emersion/go-sasl"

	"heron/internal/store"
)

const capabilityList = "IMAP4rev1 UIDPLUS ENABLE SASL-IR AUTH=PLAIN"

func (s *Session) handleCapability(tag string) {
	s.send("* CAPABILITY %s", capabilityList)
	s.send("%s OK Capability completed", tag)
}

func (s *Session) handleLogin(tag string, args []string) {
	if len(args) < 2 {
		s.send("%s BAD Login command requires username and password", tag)
		return
	}

	account, err := s.store.Accounts().FindByUsername(args[0])
	if errors.Is(err, store.ErrNotFound) {
		s.send("%s NO Login failed: account not found", tag)
		return
	}
	if err != nil {
		s.fail(tag, "Login", err)
		return
	}

	if account.Password == "" {
		s.send("%s NO Login failed: account has no password set", tag)
		return
	}
	if account.Password != args[1] {
		s.send("%s NO Login failed: authentication failed", tag)
		return
	}

	s.state.Authenticated = true
	s.state.Account = account
	s.send("%s OK Login successful", tag)
}

// handleAuthenticate implements AUTHENTICATE PLAIN, accepting the
// initial response inline (SASL-IR) or over a continuation exchange.
func (s *Session) handleAuthenticate(tag string, args []string) {
	if len(args) == 0 {
		s.send("%s BAD AUTHENTICATE command requires a mechanism", tag)
		return
	}
	if strings.ToUpper(args[0]) != sasl.Plain {
		s.send("%s NO Unsupported authentication mechanism: %s", tag, args[0])
		return
	}

	server := sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return errors.New("identities do not match")
		}
		account, err := s.store.Accounts().FindByUsername(username)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("account not found")
		}
		if err != nil {
			return err
		}
		if account.Password == "" {
			return errors.New("account has no password set")
		}
		if account.Password != password {
			return errors.New("authentication failed")
		}
		s.state.Authenticated = true
		s.state.Account = account
		return nil
	})

	var response []byte
	if len(args) > 1 {
		decoded, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			s.send("%s BAD Invalid base64 response", tag)
			return
		}
		response = decoded
	}

	for {
		challenge, done, err := server.Next(response)
		if err != nil {
			s.send("%s NO Authenticate failed: %v", tag, err)
			return
		}
		if done {
			break
		}

		s.send("+ %s", base64.StdEncoding.EncodeToString(challenge))
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "*" {
			s.send("%s BAD Authentication cancelled", tag)
			return
		}
		response, err = base64.StdEncoding.DecodeString(line)
		if err != nil {
			s.send("%s BAD Invalid base64 response", tag)
			return
		}
	}

	s.send("%s OK Authenticate completed", tag)
}

func (s *Session) handleLogout(tag string) {
	s.send("* BYE IMAP server logging out")
	s.send("%s OK Logout completed", tag)
}
