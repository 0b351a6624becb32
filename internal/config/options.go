package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// mount(8)-style aliases for MountConfig keys.
var optionAliases = map[string]string{
	"fsname": "fs_name",
}

// mount(8) flags that take no value and what they set read_only to.
var readOnlyFlags = map[string]bool{
	"ro": true,
	"rw": false,
}

// ApplyMountOptions applies "-o" style options (e.g. "ro", "fsname=scratch",
// "allow_other=false", "ready_timeout=5s") on top of cfg.Mount. Bare keys
// set a boolean to true. "ro" and "rw" are flags and reject a value.
func ApplyMountOptions(cfg *Config, options []string) error {
	raw := make(map[string]interface{})

	for _, group := range options {
		for _, opt := range strings.Split(group, ",") {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}

			key, value, hasValue := strings.Cut(opt, "=")
			key = strings.ToLower(strings.TrimSpace(key))

			if readOnly, ok := readOnlyFlags[key]; ok {
				if hasValue {
					return fmt.Errorf("mount option %q takes no value", key)
				}
				raw["read_only"] = readOnly
				continue
			}
			if !hasValue {
				value = "true"
			}

			if alias, ok := optionAliases[key]; ok {
				key = alias
			}
			raw[key] = strings.TrimSpace(value)
		}
	}

	if len(raw) == 0 {
		return nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &cfg.Mount,
	})
	if err != nil {
		return fmt.Errorf("failed to build option decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid mount option: %w", err)
	}

	if len(md.Unused) > 0 {
		return fmt.Errorf("unknown mount option(s): %s", strings.Join(md.Unused, ", "))
	}

	return nil
}
