// Package shell assembles command lines from templates and runs them
// through package spawn.
//
//	sh := shell.New()
//	res, err := sh.Runf("git -C {} log -1 --format=%H", repo).Get()
//
// Arguments are quoted with Quote. A spawn.Result argument contributes its
// stdout without the trailing newline, and a slice contributes one quoted
// token per element. Unfinished executions and futures are awaited before
// the command line is built.
package shell
