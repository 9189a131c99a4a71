package imap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tokenize splits a raw command line into its tag, upper-cased verb
// and argument list. The tag is the client's correlation id and must
// be echoed verbatim in the tagged response. ok is false for an
// empty line.
func Tokenize(line string) (tag, verb string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", nil, false
	}

	rest := line
	if idx := strings.IndexByte(rest, ' '); idx != -1 {
		tag = rest[:idx]
		rest = strings.TrimLeft(rest[idx+1:], " ")
	} else {
		return rest, "", nil, true
	}

	if idx := strings.IndexByte(rest, ' '); idx != -1 {
		verb = strings.ToUpper(rest[:idx])
		args = SplitArgs(rest[idx+1:])
	} else {
		verb = strings.ToUpper(rest)
	}

	return tag, verb, args, true
}

// SplitArgs splits an argument string on spaces, honoring quotes:
// a double or single quote toggles in-quote state and is stripped from the
// emitted token; spaces inside quotes are preserved; a backslash
// immediately before a quote suppresses the toggle and both
// characters are kept verbatim.
func SplitArgs(argString string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	var quoteChar byte

	for i := 0; i < len(argString); i++ {
		ch := argString[i]

		switch {
		case (ch == '"' || ch == '\'') && (i == 0 || argString[i-1] != '\\'):
			if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else if ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// ParseLiteralSize recognizes a byte-literal declaration "{N}" or the
// LITERAL+ form "{N+}" at the end of a command line and returns the
// declared size.
func ParseLiteralSize(arg string) (size int, nonSync bool, ok bool) {
	if len(arg) < 3 || arg[0] != '{' || arg[len(arg)-1] != '}' {
		return 0, false, false
	}

	inner := arg[1 : len(arg)-1]
	if strings.HasSuffix(inner, "+") {
		nonSync = true
		inner = inner[:len(inner)-1]
	}

	size, err := strconv.Atoi(inner)
	if err != nil || size < 0 {
		return 0, false, false
	}
	return size, nonSync, true
}

// ReadLiteral reads exactly size raw bytes from the stream (binary
// safe, not line delimited), then consumes the trailing CRLF that
// terminates the literal on the wire. The declared size never
// includes that CRLF.
func ReadLiteral(reader *bufio.Reader, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read literal of %d bytes: %w", size, err)
	}

	// Consume the line terminator following the literal payload.
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read literal terminator: %w", err)
	}

	return data, nil
}
