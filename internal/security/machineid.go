package security

import (
	"os"
	"strings"
)

// machineIDFiles are tried in order. systemd first, then the older dbus
// location.
var machineIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineID returns a stable identifier for this machine. When no OS-level
// id is readable it falls back to "<user>_<hostname>", which is stable
// enough for the key derivation's purpose.
func MachineID() string {
	for _, path := range machineIDFiles {
		data, err := os.ReadFile(path) //nolint:gosec // G304: fixed well-known paths
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "default_user"
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return username + "_" + hostname
}
