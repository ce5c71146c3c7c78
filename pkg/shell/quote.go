package shell

import (
	"regexp"
	"strings"
)

// Quoter turns one substituted value into a shell-safe token.
type Quoter func(string) string

var safeToken = regexp.MustCompile(`^[\w./:=@-]+$`)

var ansiCEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
	"\x00", `\0`,
)

// Quote returns s unchanged when it is empty or made only of word
// characters and ./:=@-. Anything else is wrapped in ANSI-C quoting ($'...'),
// which bash, zsh and ksh understand.
func Quote(s string) string {
	if s == "" || safeToken.MatchString(s) {
		return s
	}
	return "$'" + ansiCEscaper.Replace(s) + "'"
}
