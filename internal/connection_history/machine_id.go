package connection_history

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const passwordSalt = "dfox-keyring-salt-v1"

// deriveFilePassword builds the file backend passphrase from the machine id
// and the current user. It is stable across runs on one machine.
func deriveFilePassword() (string, error) {
	id, err := machineID()
	if err != nil || id == "" {
		id, _ = os.Hostname()
	}

	hash := sha256.Sum256([]byte(id + currentUser() + passwordSalt))
	return base64.StdEncoding.EncodeToString(hash[:]), nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return fmt.Sprintf("uid-%d", os.Getuid())
}

func machineID() (string, error) {
	switch runtime.GOOS {
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
			if data, err := os.ReadFile(path); err == nil {
				return strings.TrimSpace(string(data)), nil
			}
		}
	case "darwin":
		out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
		if err == nil {
			if id := fieldAfter(string(out), "IOPlatformUUID", "="); id != "" {
				return id, nil
			}
		}
	case "windows":
		out, err := exec.Command("wmic", "csproduct", "get", "UUID").Output()
		if err == nil {
			for _, line := range strings.Split(string(out), "\n") {
				line = strings.TrimSpace(line)
				if line != "" && line != "UUID" {
					return line, nil
				}
			}
		}
	}
	return os.Hostname()
}

// fieldAfter finds the first line containing name and returns the unquoted
// value after sep
func fieldAfter(output, name, sep string) string {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, name) {
			continue
		}
		parts := strings.SplitN(line, sep, 2)
		if len(parts) == 2 {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"")
		}
	}
	return ""
}
