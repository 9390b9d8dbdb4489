package tui

import (
	"sort"
	"strings"
)

// Command is a parsed prompt line.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"q":   "quit",
	"h":   "help",
	"s":   "search",
	"c":   "chat",
	"img": "image",
}

// commandNames lists every command the prompt completes.
var commandNames = func() []string {
	names := []string{
		"chat", "checkin", "discard", "help", "image", "interest",
		"login", "logout", "profile", "quit", "recs", "refresh", "retry", "search",
	}
	sort.Strings(names)
	return names
}()

// ParseCommand parses a command line without the leading ':'. Aliases
// resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	name, args, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if full, ok := commandAliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

// Fields splits Args into the first word and the remainder.
func (c Command) Fields() (string, string) {
	first, rest, _ := strings.Cut(c.Args, " ")
	return first, strings.TrimSpace(rest)
}
