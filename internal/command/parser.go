// Package command parses chat commands of the form
// "run <target> [sender] [message]".
package command

import (
	"errors"
	"strings"

	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging"
)

// ErrUsage is returned for any text that is not a valid run command.
var ErrUsage = errors.New("command: invalid command")

// UsageMessage is the reply sent for malformed commands.
const UsageMessage = "Invalid command. Usage:\n- run <target> [sender] [message]"

// Kind says how the target should be resolved.
type Kind int

const (
	KindFile Kind = iota + 1
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Command is a parsed run request.
type Command struct {
	Target  string
	Kind    Kind
	Sender  string
	Message string
}

// Parser holds the defaults and allow-lists used while parsing.
type Parser struct {
	DefaultMessage  string
	DefaultSender   string
	ApprovedSenders []string
	// Extensions recognized as list files, compared case-insensitively.
	// Empty means ".txt".
	Extensions []string
}

// Parse turns text into a Command or returns ErrUsage.
func (p Parser) Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "run") {
		return Command{}, ErrUsage
	}

	cmd := Command{Target: fields[1], Sender: p.DefaultSender, Message: p.DefaultMessage}
	switch {
	case p.IsListFile(cmd.Target):
		cmd.Kind = KindFile
	case messaging.IsLocalNumber(cmd.Target):
		cmd.Kind = KindNumber
	default:
		return Command{}, ErrUsage
	}

	rest := afterFields(text, 2)
	if rest == "" {
		return cmd, nil
	}
	if first := strings.Fields(rest)[0]; p.Approved(first) {
		cmd.Sender = first
		rest = afterFields(rest, 1)
	}
	if rest != "" {
		cmd.Message = rest
	}
	return cmd, nil
}

// IsListFile reports whether target ends in a recognized list extension.
func (p Parser) IsListFile(target string) bool {
	lower := strings.ToLower(target)
	exts := p.Extensions
	if len(exts) == 0 {
		exts = []string{".txt"}
	}
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Approved reports whether token is one of the approved sender names.
func (p Parser) Approved(token string) bool {
	if token == "" {
		return false
	}
	for _, s := range p.ApprovedSenders {
		if s == token {
			return true
		}
	}
	return false
}

// afterFields returns text with the first n whitespace-separated fields and
// the whitespace around them removed. Inner whitespace of the remainder,
// including newlines, is preserved.
func afterFields(text string, n int) string {
	rest := strings.TrimLeft(text, " \t\r\n")
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t\r\n")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t\r\n")
	}
	return strings.TrimSpace(rest)
}
