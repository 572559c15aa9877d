package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-schema-sync/models"
)

// VersionCompat grades the compatibility of two protocol versions.
type VersionCompat int

const (
	// VersionOK means the peers speak the same major.minor version.
	VersionOK VersionCompat = iota
	// VersionMinorMismatch means the connection proceeds with optional
	// capabilities disabled.
	VersionMinorMismatch
	// VersionIncompatible means the major versions differ; the connection
	// must be rejected as fatal.
	VersionIncompatible
)

type semver struct {
	major, minor, patch int
}

func parseSemver(s string) (semver, error) {
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	if len(parts) < 2 {
		return semver{}, fmt.Errorf("not a semver string: %q", s)
	}

	var v semver
	var err error
	if v.major, err = strconv.Atoi(parts[0]); err != nil {
		return semver{}, fmt.Errorf("bad major version in %q: %w", s, err)
	}
	if v.minor, err = strconv.Atoi(parts[1]); err != nil {
		return semver{}, fmt.Errorf("bad minor version in %q: %w", s, err)
	}
	if len(parts) == 3 {
		// Tolerate pre-release suffixes on the patch component.
		patch := strings.FieldsFunc(parts[2], func(r rune) bool { return r == '-' || r == '+' })
		if len(patch) > 0 {
			if v.patch, err = strconv.Atoi(patch[0]); err != nil {
				return semver{}, fmt.Errorf("bad patch version in %q: %w", s, err)
			}
		}
	}

	return v, nil
}

// CheckProtocolVersion compares a peer's protocol version against this
// build's. A major mismatch is fatal ([VersionIncompatible] plus
// ErrUnsupportedVersion); a minor mismatch is a non-fatal capability
// downgrade. Unparseable versions are fatal.
func CheckProtocolVersion(peerVersion string) (VersionCompat, error) {
	peer, err := parseSemver(peerVersion)
	if err != nil {
		return VersionIncompatible, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}
	own, err := parseSemver(models.ProtocolVersion)
	if err != nil {
		return VersionIncompatible, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}

	if peer.major != own.major {
		return VersionIncompatible, fmt.Errorf("%w: peer %s, broker %s",
			ErrUnsupportedVersion, peerVersion, models.ProtocolVersion)
	}
	if peer.minor != own.minor {
		return VersionMinorMismatch, nil
	}
	return VersionOK, nil
}

// ReducedCapabilities returns the capability set granted to a peer given its
// version compatibility grade. Minor mismatches keep the transport but lose
// the optional features.
func ReducedCapabilities(compat VersionCompat) models.Capabilities {
	if compat == VersionOK {
		return models.Capabilities{
			IncrementalUpdates: true,
			Compression:        false,
			StatePreservation:  true,
		}
	}
	return models.Capabilities{}
}
