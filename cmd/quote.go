package cmd

import (
	"fmt"
	"strings"

	"github.com/smazurov/procspawn/pkg/shell"
	"github.com/spf13/cobra"
)

// CreateQuoteCmd creates the quote command.
func CreateQuoteCmd() *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "quote [args...]",
		Short: "Print arguments quoted for safe use in a shell command line",
		Long: `Quotes each argument the way command lines are built for the shell: plain words are kept, ` +
			`anything else becomes an ANSI-C $'...' string. With --template, every {} in the template ` +
			`is replaced by the next quoted argument.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), quoteLine(template, args))
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "", "Command template with {} placeholders")

	return cmd
}

func quoteLine(template string, args []string) string {
	if template == "" {
		quoted := make([]string, len(args))
		for i, arg := range args {
			quoted[i] = shell.Quote(arg)
		}
		return strings.Join(quoted, " ")
	}

	values := make([]any, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return shell.Build(nil, strings.Split(template, "{}"), values...)
}
