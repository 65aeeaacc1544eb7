// Package gadget turns voice directives into arm motions.
package gadget

import (
	"fmt"
	"slices"
	"strings"
)

// Command is one of the preset arm actions.
type Command int

// The preset commands.
const (
	Right Command = iota + 1
	Left
	Go
	Straight
	Ready
)

func (c Command) String() string {
	switch c {
	case Right:
		return "right"
	case Left:
		return "left"
	case Go:
		return "go"
	case Straight:
		return "straight"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

type commandTokens struct {
	command Command
	tokens  []string
}

// tokenTable lists the invocation tokens accepted for each command. The
// tokens correspond to the voice skill's slot values. Order is the order
// commands run in when a token matches more than one.
var tokenTable = []commandTokens{
	{Right, []string{"right"}},
	{Left, []string{"left"}},
	{Straight, []string{"straight"}},
	{Go, []string{"go"}},
	{Ready, []string{"ready"}},
}

func init() {
	if err := validateTokens(tokenTable); err != nil {
		panic(err)
	}
}

// validateTokens checks that tokens are lowercase, non-empty and claimed
// by a single command.
func validateTokens(table []commandTokens) error {
	owner := make(map[string]Command)
	for _, entry := range table {
		if len(entry.tokens) == 0 {
			return fmt.Errorf("command %s has no tokens", entry.command)
		}
		for _, tok := range entry.tokens {
			if tok == "" || tok != strings.ToLower(tok) {
				return fmt.Errorf("command %s: invalid token %q", entry.command, tok)
			}
			if prev, ok := owner[tok]; ok {
				return fmt.Errorf("token %q claimed by both %s and %s", tok, prev, entry.command)
			}
			owner[tok] = entry.command
		}
	}
	return nil
}

// Resolve returns every command whose token set contains token. Each
// command is tested on its own, so an unknown token yields nil and a token
// shared by several commands would yield all of them.
func Resolve(token string) []Command {
	return resolveIn(tokenTable, token)
}

func resolveIn(table []commandTokens, token string) []Command {
	var out []Command
	for _, entry := range table {
		if slices.Contains(entry.tokens, token) {
			out = append(out, entry.command)
		}
	}
	return out
}

// Tokens returns the canonical token of every command in table order.
func Tokens() []string {
	out := make([]string, 0, len(tokenTable))
	for _, entry := range tokenTable {
		out = append(out, entry.tokens[0])
	}
	return out
}
