//go:build !linux && !darwin && !windows

package library

func birthTime(string) string {
	return ""
}
