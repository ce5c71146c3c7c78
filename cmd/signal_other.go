//go:build !unix

package cmd

func signalNumber(string) int {
	return 0
}
