package shell

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/smazurov/procspawn/pkg/spawn"
)

// Pending is a value that is not known yet. Build arguments that are Pending
// are resolved before the command line is assembled.
type Pending interface {
	Resolve(ctx context.Context) (any, error)
}

// Substitute renders one argument as text before quoting. A result yields
// its stdout without one trailing newline, so the output of one command can
// be fed to the next.
func Substitute(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *spawn.Result:
		if x == nil {
			return ""
		}
		return strings.TrimSuffix(x.Stdout, "\n")
	case spawn.Result:
		return strings.TrimSuffix(x.Stdout, "\n")
	case *spawn.Context:
		select {
		case <-x.Done():
			return Substitute(x.Fulfilled)
		default:
			return ""
		}
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Build interleaves pieces with the quoted substitutions of args:
// pieces[0] args[0] pieces[1] args[1] ... A slice argument expands to its
// elements, each quoted, joined by single spaces. Pieces beyond len(args)+1
// are appended unchanged.
//
// Build does not wait for pending values; use BuildContext when args may
// contain any.
func Build(quote Quoter, pieces []string, args ...any) string {
	if quote == nil {
		quote = Quote
	}

	var b strings.Builder
	if len(pieces) > 0 {
		b.WriteString(pieces[0])
	}
	for i, arg := range args {
		b.WriteString(token(quote, arg))
		if i+1 < len(pieces) {
			b.WriteString(pieces[i+1])
		}
	}
	for i := len(args) + 1; i < len(pieces); i++ {
		b.WriteString(pieces[i])
	}
	return b.String()
}

func token(quote Quoter, arg any) string {
	if arg == nil {
		return quote("")
	}
	if _, ok := arg.([]byte); ok {
		return quote(Substitute(arg))
	}
	v := reflect.ValueOf(arg)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return quote(Substitute(arg))
	}

	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = quote(Substitute(v.Index(i).Interface()))
	}
	return strings.Join(parts, " ")
}

// IsPending reports whether any argument still has to be resolved: a
// Pending value or an execution that has not ended.
func IsPending(args []any) bool {
	for _, arg := range args {
		if isPending(arg) {
			return true
		}
	}
	return false
}

func isPending(arg any) bool {
	switch x := arg.(type) {
	case Pending:
		return true
	case *spawn.Context:
		select {
		case <-x.Done():
			return false
		default:
			return true
		}
	}
	return false
}

// BuildContext resolves every pending argument, in order, then builds the
// command line from the resolved values. The first resolution error aborts
// the build.
func BuildContext(ctx context.Context, quote Quoter, pieces []string, args ...any) (string, error) {
	resolved := make([]any, len(args))
	for i, arg := range args {
		v, err := resolve(ctx, arg)
		if err != nil {
			return "", fmt.Errorf("resolve argument %d: %w", i, err)
		}
		resolved[i] = v
	}
	return Build(quote, pieces, resolved...), nil
}

// BuildAsync is BuildContext running in the background.
func BuildAsync(quote Quoter, pieces []string, args ...any) *Future[string] {
	f := NewFuture[string]()
	go func() {
		cmd, err := BuildContext(context.Background(), quote, pieces, args...)
		f.settle(cmd, err)
	}()
	return f
}

func resolve(ctx context.Context, arg any) (any, error) {
	switch x := arg.(type) {
	case Pending:
		return x.Resolve(ctx)
	case *spawn.Context:
		res, err := x.Await(ctx)
		if err != nil {
			return nil, err
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res, nil
	}
	return arg, nil
}
