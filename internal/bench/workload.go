// Package bench loads workload definitions and drives them against
// slab-arena trees: deterministic phase execution, progress metrics, and
// report/chart rendering for the slabbench CLI.
package bench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidCapacity     = errors.New("bench: capacity must be positive")
	ErrInvalidPolicy       = errors.New("bench: unknown overflow policy")
	ErrInvalidRecordBytes  = errors.New("bench: record bytes out of range")
	ErrInvalidShards       = errors.New("bench: shards must be positive")
	ErrInvalidKeySpace     = errors.New("bench: key space must be positive")
	ErrNoPhases            = errors.New("bench: a workload needs at least one phase")
	ErrInvalidPhaseKind    = errors.New("bench: unknown phase kind")
	ErrInvalidOps          = errors.New("bench: phase ops must be positive")
	ErrInvalidDistribution = errors.New("bench: unknown key distribution")
)

// Overflow policies for the tree under test.
const (
	PolicyFixed = "fixed"
	PolicyGrow  = "grow"
	PolicyEvict = "evict"
)

// Phase kinds.
const (
	PhaseInsert    = "insert"
	PhaseFind      = "find"
	PhaseDelete    = "delete"
	PhaseMixed     = "mixed"
	PhaseScan      = "scan"
	PhaseHibernate = "hibernate"
)

// Key distributions.
const (
	DistSequential = "sequential"
	DistUniform    = "uniform"
	DistZipf       = "zipf"
)

// Default workload values.
const (
	defaultName        = "workload"
	defaultSeed        = 1
	defaultCapacity    = 65536
	defaultRecordBytes = 24
	defaultShards      = 1
	defaultKeySpace    = 65536

	minRecordBytes = 8
	maxRecordBytes = 64
)

// Workload describes one benchmark run: the tree under test and the
// sequence of phases driven against it.
type Workload struct {
	Name        string  `mapstructure:"name"         json:"name"`
	Policy      string  `mapstructure:"policy"       json:"policy"`
	Phases      []Phase `mapstructure:"phases"       json:"phases"`
	Seed        int64   `mapstructure:"seed"         json:"seed"`
	Capacity    int     `mapstructure:"capacity"     json:"capacity"`
	RecordBytes int     `mapstructure:"record_bytes" json:"record_bytes"`
	Shards      int     `mapstructure:"shards"       json:"shards"`
	KeySpace    uint64  `mapstructure:"key_space"    json:"key_space"`
}

// Phase is one stretch of homogeneous load: a kind, an operation count and
// the distribution keys are drawn from.
type Phase struct {
	Kind         string `mapstructure:"kind"         json:"kind"`
	Distribution string `mapstructure:"distribution" json:"distribution"`
	Ops          int64  `mapstructure:"ops"          json:"ops"`
}

// LoadWorkload loads a workload definition from file and environment
// variables. An empty path falls back to workload.yaml in the working
// directory and tolerates its absence; an explicit path must exist.
func LoadWorkload(path string) (*Workload, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if path != "" {
		viperCfg.SetConfigFile(path)
	} else {
		viperCfg.SetConfigName("workload")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix("SLABBENCH")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read workload file: %w", readErr)
		}
	}

	var workload Workload

	unmarshalErr := viperCfg.Unmarshal(&workload)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal workload: %w", unmarshalErr)
	}

	normalizeWorkload(&workload)

	validateErr := workload.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid workload: %w", validateErr)
	}

	return &workload, nil
}

// setDefaults sets default workload values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("name", defaultName)
	viperCfg.SetDefault("seed", defaultSeed)
	viperCfg.SetDefault("capacity", defaultCapacity)
	viperCfg.SetDefault("policy", PolicyGrow)
	viperCfg.SetDefault("record_bytes", defaultRecordBytes)
	viperCfg.SetDefault("shards", defaultShards)
	viperCfg.SetDefault("key_space", defaultKeySpace)
}

// normalizeWorkload fills per-phase defaults that viper cannot express for
// list elements.
func normalizeWorkload(workload *Workload) {
	for i := range workload.Phases {
		if workload.Phases[i].Distribution == "" {
			workload.Phases[i].Distribution = DistSequential
		}
	}
}

// Validate checks the workload against the model constraints.
func (w *Workload) Validate() error {
	if w.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, w.Capacity)
	}

	if w.Policy != PolicyFixed && w.Policy != PolicyGrow && w.Policy != PolicyEvict {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, w.Policy)
	}

	if w.RecordBytes < minRecordBytes || w.RecordBytes > maxRecordBytes {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidRecordBytes, w.RecordBytes, minRecordBytes, maxRecordBytes)
	}

	if w.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, w.Shards)
	}

	if w.KeySpace == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, w.KeySpace)
	}

	if len(w.Phases) == 0 {
		return ErrNoPhases
	}

	for i := range w.Phases {
		err := w.Phases[i].validate()
		if err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
	}

	return nil
}

// validate checks one phase.
func (p *Phase) validate() error {
	switch p.Kind {
	case PhaseInsert, PhaseFind, PhaseDelete, PhaseMixed, PhaseScan, PhaseHibernate:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPhaseKind, p.Kind)
	}

	if p.Ops <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOps, p.Ops)
	}

	switch p.Distribution {
	case DistSequential, DistUniform, DistZipf:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDistribution, p.Distribution)
	}

	return nil
}
