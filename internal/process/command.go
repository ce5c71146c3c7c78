package process

import (
	"errors"
	"strings"
)

var (
	errEmptyCommand = errors.New("empty command")
	errUnclosed     = errors.New("unclosed quote in command")
)

// parseCommand splits a command line into arguments for direct execution.
// Handles single and double quotes and backslash escapes; no other shell
// syntax is interpreted.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	// quoted tracks an argument that is explicitly empty, such as "".
	quoted := false

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoted = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		case r == '\\' && i+1 < len(runes) && quoteChar != '\'':
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if inQuote {
		return nil, errUnclosed
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, errEmptyCommand
	}

	return args, nil
}
