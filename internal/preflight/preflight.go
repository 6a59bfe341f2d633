package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"bindery/internal/config"
	"bindery/internal/engine"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free-space floor for the download directory; converted
// documents with embedded audio can run to several hundred megabytes.
const minFreeBytes = 1 << 30

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, client *engine.Client) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckEngine(ctx, client))
	if cfg.Paths.DownloadDir != "" {
		results = append(results, CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir))
		results = append(results, CheckFreeSpace("Download free space", cfg.Paths.DownloadDir))
	}
	return results
}

// CheckEngine probes the engine's /alive endpoint. An offline engine fails
// the check but is not fatal for daemon startup; the workflow keeps
// re-probing.
func CheckEngine(ctx context.Context, client *engine.Client) Result {
	name := "Engine"
	if client == nil {
		return Result{Name: name, Detail: "no engine client configured"}
	}
	alive, err := client.Alive(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !alive.Alive {
		return Result{Name: name, Detail: fmt.Sprintf("engine at %s is not responding", client.BaseURL())}
	}
	detail := "online"
	if alive.Version != "" {
		detail = "online, version " + alive.Version
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies the path exists, is a directory, and is
// read/write/traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cannot stat %s: %v", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("insufficient permissions on %s: %v", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckFreeSpace verifies the filesystem holding path has room for results.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cannot statfs %s: %v", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("only %d MiB free on %s", free>>20, path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d GiB free", free>>30)}
}
