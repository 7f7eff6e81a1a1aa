package asarpack

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/meigma/asarpack/internal/unpack"
)

// RawOptionKind identifies the shape of a RawOption.
type RawOptionKind uint8

const (
	// OptionUnset means the asar option was not given.
	OptionUnset RawOptionKind = iota

	// OptionBool means the asar option was a boolean.
	OptionBool

	// OptionSettings means the asar option was a settings object.
	OptionSettings

	// OptionInvalid means the asar option had any other shape.
	OptionInvalid
)

// String returns the kind name.
func (k RawOptionKind) String() string {
	switch k {
	case OptionUnset:
		return "unset"
	case OptionBool:
		return "bool"
	case OptionSettings:
		return "settings"
	case OptionInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Settings holds the recognized fields of an asar settings object.
type Settings struct {
	// Unpack is a glob; matching files are left outside the archive.
	Unpack string

	// UnpackDir is a glob; files in matching directories are left outside
	// the archive.
	UnpackDir string

	// Ordering lists paths to place first in the archive.
	Ordering []string

	// OrderingFile names a file holding ordering paths, one per line.
	OrderingFile string
}

// RawOption is the asar option as supplied by the caller, before
// normalization. The zero value is unset.
type RawOption struct {
	kind     RawOptionKind
	enabled  bool
	settings Settings
}

// RawBool returns a boolean asar option.
func RawBool(enabled bool) RawOption {
	return RawOption{kind: OptionBool, enabled: enabled}
}

// RawSettings returns a settings-object asar option.
func RawSettings(s Settings) RawOption {
	s.Ordering = slices.Clone(s.Ordering)
	return RawOption{kind: OptionSettings, settings: s}
}

// RawInvalid returns an asar option of unrecognized shape.
func RawInvalid() RawOption {
	return RawOption{kind: OptionInvalid}
}

// Kind returns the option's shape.
func (o RawOption) Kind() RawOptionKind {
	return o.kind
}

// RawOptionFromValue converts a loosely typed value, such as one decoded
// from a JSON, YAML or TOML configuration file, into a RawOption.
//
// nil is unset; bool is a boolean; Settings, *Settings and maps with string
// keys are settings objects; anything else is invalid. Map keys match
// without regard to case, since configuration loaders may lower-case them.
// Unknown keys and values of the wrong type are ignored.
func RawOptionFromValue(v any) RawOption {
	switch v := v.(type) {
	case nil:
		return RawOption{}
	case bool:
		return RawBool(v)
	case Settings:
		return RawSettings(v)
	case *Settings:
		if v == nil {
			return RawOption{}
		}
		return RawSettings(*v)
	case map[string]any:
		return RawSettings(settingsFromMap(v))
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			if ks, ok := k.(string); ok {
				m[ks] = val
			}
		}
		return RawSettings(settingsFromMap(m))
	default:
		return RawInvalid()
	}
}

func settingsFromMap(m map[string]any) Settings {
	var s Settings
	for k, val := range m {
		switch strings.ToLower(k) {
		case "unpack":
			if v, ok := val.(string); ok {
				s.Unpack = v
			}
		case "unpackdir":
			if v, ok := val.(string); ok {
				s.UnpackDir = v
			}
		case "ordering":
			setOrdering(&s, val)
		}
	}
	return s
}

func setOrdering(s *Settings, val any) {
	switch v := val.(type) {
	case string:
		s.OrderingFile = v
	case []string:
		s.Ordering = v
	case []any:
		for _, item := range v {
			if p, ok := item.(string); ok {
				s.Ordering = append(s.Ordering, p)
			}
		}
	}
}

// Config is the canonical archive configuration. Empty fields are unset.
type Config struct {
	// UnpackPattern is the unpack glob.
	UnpackPattern string

	// UnpackDir is the unpack directory glob.
	UnpackDir string

	// Ordering lists paths to place first in the archive.
	Ordering []string

	// OrderingFile names a file of additional ordering paths, read when
	// the archive is built.
	OrderingFile string
}

// Normalize converts a raw asar option into a Config. The boolean result is
// false when archiving is disabled: the option is unset, false, or of an
// unrecognized shape. Normalize never fails.
func Normalize(raw RawOption) (Config, bool) {
	switch raw.kind {
	case OptionBool:
		return Config{}, raw.enabled
	case OptionSettings:
		return Config{
			UnpackPattern: raw.settings.Unpack,
			UnpackDir:     raw.settings.UnpackDir,
			Ordering:      slices.Clone(raw.settings.Ordering),
			OrderingFile:  raw.settings.OrderingFile,
		}, true
	default:
		return Config{}, false
	}
}

// LoadOrdering reads an ordering file: one path per line, blank lines and
// lines starting with '#' skipped, and an optional "prefix:" column before
// the path ignored.
func LoadOrdering(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // caller-controlled path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	paths, err := unpack.ParseOrdering(f)
	if err != nil {
		return nil, fmt.Errorf("read ordering %s: %w", path, err)
	}
	return paths, nil
}
