package native

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ManifestVersion is the current binding manifest format.
const ManifestVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("native: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ManifestEntry describes one generated binding.
type ManifestEntry struct {
	Name        string `cbor:"1,keyasint"`
	Hash        uint32 `cbor:"2,keyasint"`
	FloatReturn bool   `cbor:"3,keyasint,omitempty"`
}

// Manifest is the serialisable form of a registry's bindings.
type Manifest struct {
	Version  int             `cbor:"1,keyasint"`
	Bindings []ManifestEntry `cbor:"2,keyasint"`
}

// Manifest snapshots the registry's bindings in name order.
func (r *Registry) Manifest() *Manifest {
	bs := r.Bindings()
	m := &Manifest{Version: ManifestVersion, Bindings: make([]ManifestEntry, len(bs))}
	for i, b := range bs {
		m.Bindings[i] = ManifestEntry{Name: b.Name, Hash: b.Hash, FloatReturn: b.FloatReturn}
	}
	return m
}

// MarshalManifest serializes a Manifest to canonical CBOR bytes.
func MarshalManifest(m *Manifest) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalManifest deserializes a Manifest from CBOR bytes.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("native: unmarshal manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("native: unsupported manifest version %d", m.Version)
	}
	return &m, nil
}
