package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// DiskSpace returns an error when the filesystem holding path has less
// than minFreeMiB mebibytes available.
func DiskSpace(path string, minFreeMiB int) error {
	if minFreeMiB <= 0 {
		return nil
	}
	free, err := freeBytes(path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	floor := uint64(minFreeMiB) * 1024 * 1024
	if free < floor {
		return fmt.Errorf("free space below floor: %d MiB available, %d MiB required", free/(1024*1024), minFreeMiB)
	}
	return nil
}

// CheckDiskSpace wraps DiskSpace as a named preflight result.
func CheckDiskSpace(path string, minFreeMiB int) Result {
	const name = "Free disk space"
	if err := DiskSpace(path, minFreeMiB); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("at least %d MiB available", minFreeMiB)}
}

// CheckViewerSocket verifies the viewer adapter socket exists. It does
// not dial; connection health is the bridge's concern.
func CheckViewerSocket(path string) Result {
	const name = "Viewer socket"
	if path == "" {
		return Result{Name: name, Detail: "no socket configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not present; viewer adapter not running?)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Mode()&os.ModeSocket == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a socket)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
