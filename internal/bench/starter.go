package bench

import (
	"errors"
	"fmt"
	"os"
)

// ErrStarterExists is returned when the target workload file already exists.
var ErrStarterExists = errors.New("bench: refusing to overwrite existing workload file")

const starterFilePerm = 0o644

// starterWorkload is the annotated workload written by `slabbench init`.
// It loads, validates, and runs as-is.
const starterWorkload = `# slabbench workload definition.
# Values may be overridden with SLABBENCH_* environment variables,
# e.g. SLABBENCH_SEED=7 or SLABBENCH_CAPACITY=1048576.
name: starter
seed: 1

# Arena geometry. Capacity is slots per run, split across shards.
capacity: 65536
shards: 1

# fixed | grow | evict
policy: grow

# Logical record size in bytes, 8..64 (8-byte key + payload).
record_bytes: 24

# Keys are drawn from [0, key_space).
key_space: 65536

phases:
  # kind: insert | find | delete | mixed | scan | hibernate
  # distribution: sequential | uniform | zipf
  - kind: insert
    ops: 65536
    distribution: sequential
  - kind: find
    ops: 131072
    distribution: uniform
  - kind: mixed
    ops: 131072
    distribution: zipf
`

// WriteStarterWorkload writes the starter workload to path. It refuses to
// clobber an existing file.
func WriteStarterWorkload(path string) error {
	_, statErr := os.Stat(path)
	if statErr == nil {
		return fmt.Errorf("%w: %s", ErrStarterExists, path)
	}

	if !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, statErr)
	}

	err := os.WriteFile(path, []byte(starterWorkload), starterFilePerm)
	if err != nil {
		return fmt.Errorf("write starter workload: %w", err)
	}

	return nil
}
