//go:build windows

package library

import (
	"os"
	"strconv"
	"syscall"
)

func birthTime(path string) string {
	info, err := os.Lstat(path)
	if err != nil {
		return ""
	}
	attr, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return ""
	}
	sec := attr.CreationTime.Nanoseconds() / 1e9
	if sec < 0 {
		return ""
	}
	return strconv.FormatInt(sec, 10)
}
