package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/google/uuid"
)

// DeviceProfile is the client runtime's configuration file. It identifies
// the device, names the broker, and binds the runtime to one session.
//
// Example profile.toml:
//
//	broker_url  = "localhost:8080"
//	session_id  = "0c9adf0e-…"
//	device_name = "kitchen-tablet"
//	platform    = "terminal"
type DeviceProfile struct {
	BrokerURL  string `toml:"broker_url"`
	SessionID  string `toml:"session_id"`
	DeviceID   string `toml:"device_id"`
	DeviceName string `toml:"device_name"`
	Platform   string `toml:"platform"`

	// Role defaults to device; editor tooling may set "editor" to receive
	// forwarded runtime events instead of schema pushes.
	Role models.Role `toml:"role"`

	// ClientVersion is filled by the binary, not the file.
	ClientVersion string `toml:"-"`
}

// LoadProfile reads and validates a device profile from a TOML file.
// A missing device_id is generated and kept for the process lifetime only.
func LoadProfile(path string) (DeviceProfile, error) {
	var profile DeviceProfile
	if _, err := toml.DecodeFile(path, &profile); err != nil {
		return DeviceProfile{}, fmt.Errorf("error reading device profile %s: %w", path, err)
	}

	if err := profile.applyDefaultsAndValidate(); err != nil {
		return DeviceProfile{}, fmt.Errorf("invalid device profile %s: %w", path, err)
	}
	return profile, nil
}

func (p *DeviceProfile) applyDefaultsAndValidate() error {
	if p.BrokerURL == "" {
		return fmt.Errorf("broker_url is required")
	}
	if p.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if p.DeviceID == "" {
		p.DeviceID = uuid.NewString()
	}
	if p.Platform == "" {
		p.Platform = "terminal"
	}
	if p.Role == "" {
		p.Role = models.RoleDevice
	}
	if p.Role != models.RoleDevice && p.Role != models.RoleEditor {
		return fmt.Errorf("unknown role %q", p.Role)
	}
	return nil
}

// WebSocketURL resolves the broker's /ws endpoint from BrokerURL, accepting
// bare host:port as well as http(s):// and ws(s):// forms.
func (p *DeviceProfile) WebSocketURL() (string, error) {
	raw := strings.TrimSpace(p.BrokerURL)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid broker_url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid broker_url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("broker_url must include a host")
	}

	u.Path = "/ws"
	return u.String(), nil
}
