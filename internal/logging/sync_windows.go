//go:build windows

package logging

func isTerminalSyncError(error) bool {
	return true
}
