//go:build darwin

package library

import (
	"strconv"

	"golang.org/x/sys/unix"
)

func birthTime(path string) string {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return ""
	}
	if st.Birthtimespec.Sec < 0 {
		return ""
	}
	return strconv.FormatInt(st.Birthtimespec.Sec, 10)
}
