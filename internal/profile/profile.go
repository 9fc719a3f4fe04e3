// Package profile manages the user's persistent pomosync profile.
// The profile is stored at ~/.config/pomosync/profile.json. It is created
// once via the interactive setup flow and gives this device a stable
// identity on the remote state server.
package profile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Name      string `json:"name"`
	DeviceID  string `json:"device_id"`
	RemoteURL string `json:"remote_url"` // used when no config file sets one
}

// profilePath returns the path to the profile file.
func profilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// ConfigDir returns the pomosync config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pomosync"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. Returns an error if the file is missing or malformed.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'pomo setup' to configure: %w", err)
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
// A profile without a device id is given one.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if prof.DeviceID == "" {
		prof.DeviceID = NewDeviceID()
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// NewDeviceID returns a fresh random device identifier.
func NewDeviceID() string { return uuid.NewString() }

// RunSetup runs the interactive setup wizard on in/out and returns the
// resulting profile. If existing is non-nil, it is used as the default for
// each prompt (edit mode) and its device id is kept.
func RunSetup(existing *Profile, in io.Reader, out io.Writer) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	prof := &Profile{}
	if existing != nil {
		*prof = *existing
	}
	if prof.DeviceID == "" {
		prof.DeviceID = NewDeviceID()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   pomosync: first-time setup    │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error
	prof.Name, err = ask("  Your name (shown in reports)", prof.Name)
	if err != nil {
		return nil, err
	}

	for {
		remote, err := ask("  Remote state server URL (blank for local only)", prof.RemoteURL)
		if err != nil {
			return nil, err
		}
		if remote == "-" {
			remote = ""
		}
		if remote == "" || validURL(remote) {
			prof.RemoteURL = remote
			break
		}
		fmt.Fprintf(out, "  %q is not an http(s) URL, try again (or - to clear)\n", remote)
	}

	fmt.Fprintf(out, "\n  Device id: %s\n\n", prof.DeviceID)
	return prof, nil
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
