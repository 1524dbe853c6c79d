package game

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// SerializationChecksum is a digest of a snapshot used to detect divergent
// game states across replays, rewinds and storage.
type SerializationChecksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

// ComputeChecksum hashes the snapshot's canonical encoding with BLAKE2b-256.
// encoding/json writes map keys sorted, so equal states hash equally.
func (d *GameStateData) ComputeChecksum() (*SerializationChecksum, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(data)
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(sum[:]),
		Version: d.Version,
	}, nil
}

// VerifyChecksum reports whether the snapshot still matches a checksum.
func (d *GameStateData) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	if expected == nil {
		return false, fmt.Errorf("no checksum to verify against")
	}
	computed, err := d.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes the snapshot for storage and transport.
func (d *GameStateData) SerializeToBytes() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DeserializeFromBytes decodes a snapshot written by SerializeToBytes.
func DeserializeFromBytes(data []byte) (*GameStateData, error) {
	var snapshot GameStateData
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// cloneState deep-copies a snapshot through its encoding.
func cloneState(d *GameStateData) (*GameStateData, error) {
	data, err := d.SerializeToBytes()
	if err != nil {
		return nil, err
	}
	return DeserializeFromBytes(data)
}

// ValidateSerializationRoundtrip checks that a snapshot survives encoding
// unchanged by comparing checksums.
func ValidateSerializationRoundtrip(snapshot *GameStateData) error {
	original, err := snapshot.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	decoded, err := cloneState(snapshot)
	if err != nil {
		return err
	}
	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
