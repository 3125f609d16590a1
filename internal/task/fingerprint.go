package task

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Fingerprint hashes the inputs that determine whether a rerun is warranted
// under RerunIfChanged. The value is opaque: only equality matters.
func Fingerprint(inputs any) (*uint64, error) {
	h, err := hashstructure.Hash(inputs, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("hashing task inputs: %w", err)
	}
	return &h, nil
}
