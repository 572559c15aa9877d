package protocol

import (
	"testing"

	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/stretchr/testify/assert"
)

func TestCheckProtocolVersion(t *testing.T) {
	tests := []struct {
		name    string
		peer    string
		want    VersionCompat
		wantErr bool
	}{
		{name: "Exact", peer: models.ProtocolVersion, want: VersionOK},
		{name: "PatchDiffers", peer: "1.0.9", want: VersionOK},
		{name: "MinorDiffers", peer: "1.1.0", want: VersionMinorMismatch},
		{name: "MajorDiffers", peer: "2.0.0", want: VersionIncompatible, wantErr: true},
		{name: "VPrefix", peer: "v1.0.0", want: VersionOK},
		{name: "Garbage", peer: "latest", want: VersionIncompatible, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compat, err := CheckProtocolVersion(tt.peer)
			assert.Equal(t, tt.want, compat)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedVersion)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReducedCapabilities(t *testing.T) {
	full := ReducedCapabilities(VersionOK)
	assert.True(t, full.IncrementalUpdates)
	assert.True(t, full.StatePreservation)

	reduced := ReducedCapabilities(VersionMinorMismatch)
	assert.False(t, reduced.IncrementalUpdates)
	assert.False(t, reduced.StatePreservation)
}
