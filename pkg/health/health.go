package health

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// WritePIDFile writes the sentrypulse daemon's process ID to path, so a
// later `--health` invocation (possibly run by a process supervisor as a
// liveness probe) can find it.
func WritePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0600)
}

// CheckHealth checks whether the sentrypulse process recorded in pidFile is
// running and exits the calling process with 0 (healthy) or 1 (unhealthy).
// It runs standalone, before any config is loaded or registry built, so it
// has no scheduler/registry state to report beyond liveness.
func CheckHealth(pidFile string) {
	data, err := os.ReadFile(pidFile) //nolint:gosec // G304: Reading internal PID file
	if err != nil {
		fmt.Printf("sentrypulse health check failed: could not read PID file: %v\n", err)
		os.Exit(1)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		fmt.Printf("sentrypulse health check failed: invalid PID in file: %v\n", err)
		os.Exit(1)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Printf("sentrypulse health check failed: could not find process %d: %v\n", pid, err)
		os.Exit(1)
	}

	// On Unix, FindProcess always succeeds. Use signal 0 to check if process exists.
	err = process.Signal(syscall.Signal(0))
	if err != nil {
		fmt.Printf("sentrypulse health check failed: process %d is not running: %v\n", pid, err)
		os.Exit(1)
	}

	fmt.Printf("sentrypulse health check passed: process %d is running\n", pid)
	os.Exit(0)
}
