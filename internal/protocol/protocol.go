// Package protocol implements the line-oriented wire format spoken
// between clients and the server.
//
// A request is a single line "PRIORITY:COMMAND\n" where PRIORITY is
// 1 (high), 2 (medium) or 3 (low). The bare line "exit" closes the
// connection. A response is one or more non-empty lines followed by
// an empty line.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/azargarov/prioq"
)

const (
	// MaxLineLength is the default bound on a request line,
	// excluding the newline.
	MaxLineLength = prioq.MaxPayload

	// ExitSentinel is the bare line that closes a connection.
	ExitSentinel = "exit"

	// ExitCommand is the reserved command form of the sentinel,
	// as in "2:EXIT".
	ExitCommand = "EXIT"

	// Goodbye is the last response a closing connection receives.
	Goodbye = "Goodbye!"
)

var (
	ErrMalformed       = errors.New("protocol: malformed request, expected PRIORITY:COMMAND")
	ErrInvalidPriority = errors.New("protocol: priority must be 1, 2 or 3")
	ErrEmptyCommand    = errors.New("protocol: empty command")
	ErrLineTooLong     = errors.New("protocol: line too long")
)

// Line is a parsed request line.
type Line struct {
	Priority prioq.Priority
	Command  string

	// Exit is set for the sentinel in either of its forms.
	Exit bool
}

// ParseLine validates a single request line against MaxLineLength.
// A trailing "\n" or "\r\n" is ignored. Anything that is not a
// well-formed request or the exit sentinel is rejected.
func ParseLine(raw string) (Line, error) {
	return ParseLineLimit(raw, MaxLineLength)
}

// ParseLineLimit is ParseLine with a caller-chosen bound on the line
// length, excluding the line terminator.
func ParseLineLimit(raw string, maxLen int) (Line, error) {
	raw = strings.TrimRight(raw, "\r\n")

	if raw == ExitSentinel {
		return Line{Priority: prioq.Medium, Command: ExitCommand, Exit: true}, nil
	}
	if len(raw) > maxLen {
		return Line{}, ErrLineTooLong
	}

	head, cmd, ok := strings.Cut(raw, ":")
	if !ok {
		return Line{}, ErrMalformed
	}
	prio, err := prioq.ParsePriority(head)
	if err != nil {
		return Line{}, ErrInvalidPriority
	}
	if strings.TrimSpace(cmd) == "" {
		return Line{}, ErrEmptyCommand
	}

	return Line{
		Priority: prio,
		Command:  cmd,
		Exit:     cmd == ExitCommand || cmd == ExitSentinel,
	}, nil
}

// FormatRequest renders a request line including its newline.
func FormatRequest(p prioq.Priority, command string) string {
	return fmt.Sprintf("%d:%s\n", p, command)
}

// WriteResponse writes body as a response block. Empty lines inside
// body are sent as a single space so they cannot end the block early.
func WriteResponse(w io.Writer, body string) error {
	var b strings.Builder
	body = strings.TrimRight(body, "\r\n")
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			line = " "
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// ReadResponse reads one response block and returns its body without
// the terminating empty line.
func ReadResponse(r *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && (len(lines) > 0 || line != "") {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}
