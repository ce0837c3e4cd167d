package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes is the free space below which writing results is
// flagged (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks there is room to write results under dir.
func (c *Checker) CheckDiskSpace(dir string) CheckResult {
	result := CheckResult{
		Name: "disk_space",
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		result.Status = StatusWarn
		result.Message = "failed to check disk space"
		result.Details = err.Error()
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", humanize.IBytes(available), humanize.IBytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		result.Status = StatusWarn
		result.Details = "Large --outfile exports may not fit"
		return result
	}
	result.Status = StatusPass
	return result
}
