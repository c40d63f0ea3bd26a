package cache

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/cachekit/faascache/bytesize"
)

// fileOptions is the declarative subset of Options. Byte budgets accept
// both bare integers and suffixed strings ("64M"); durations accept Go
// syntax ("90s", "5m"). Zero or omitted budgets are unbounded, matching
// Options.
type fileOptions struct {
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	MaxBytes      bytesize.Size `koanf:"max_bytes"`
	MaxItems      int           `koanf:"max_items"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// OptionsFromYAML decodes the declarative Options fields from YAML:
//
//	default_ttl: 90s
//	max_bytes: 64M
//	max_items: 10000
//	sweep_interval: 5s
//
// Runtime collaborators (OnDelete, SizeOf, Loader, Metrics, Clock,
// Logger) are left at their zero values for the caller to fill in
// before New.
func OptionsFromYAML[K comparable, V any](data []byte) (Options[K, V], error) {
	return optionsFrom[K, V](data, yaml.Parser())
}

// OptionsFromJSON is OptionsFromYAML for JSON input.
func OptionsFromJSON[K comparable, V any](data []byte) (Options[K, V], error) {
	return optionsFrom[K, V](data, json.Parser())
}

func optionsFrom[K comparable, V any](data []byte, parser koanf.Parser) (Options[K, V], error) {
	var opt Options[K, V]
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return opt, fmt.Errorf("cache: load config: %w", err)
	}
	var fc fileOptions
	if err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return opt, fmt.Errorf("cache: decode config: %w", err)
	}
	opt.DefaultTTL = fc.DefaultTTL
	opt.MaxBytes = fc.MaxBytes
	opt.MaxItems = fc.MaxItems
	opt.SweepInterval = fc.SweepInterval
	return opt, nil
}
