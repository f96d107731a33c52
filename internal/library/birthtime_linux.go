//go:build linux

package library

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// birthTime returns the file's creation time in unix seconds, or "" when the
// filesystem does not record one. Symlinks are not followed.
func birthTime(path string) string {
	var st unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT|unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &st); err != nil {
		return ""
	}
	if st.Mask&unix.STATX_BTIME == 0 || st.Btime.Sec < 0 {
		return ""
	}
	return strconv.FormatInt(st.Btime.Sec, 10)
}
