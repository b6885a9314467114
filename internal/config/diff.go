package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultProviderChanged bool
	NewDefaultProvider     string

	// ProviderChanges lists added, removed and modified providers in name
	// order.
	ProviderChanges []ProviderDiff

	ServicesChanged    bool
	VectorStoreChanged bool
	ListenAddrChanged  bool
	TelemetryChanged   bool
}

// ProviderDiff describes what changed for a single provider.
type ProviderDiff struct {
	Name     string
	Added    bool
	Removed  bool
	Modified bool
}

// RequiresRestart reports whether d contains changes that cannot be applied
// to a running process. Only the log level is applied live.
func (d ConfigDiff) RequiresRestart() bool {
	return d.DefaultProviderChanged || len(d.ProviderChanges) > 0 ||
		d.ServicesChanged || d.VectorStoreChanged || d.ListenAddrChanged || d.TelemetryChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.ListenAddrChanged = true
	}
	if old.Server.TraceSampleRatio != new.Server.TraceSampleRatio {
		d.TelemetryChanged = true
	}
	if old.DefaultProvider != new.DefaultProvider {
		d.DefaultProviderChanged = true
		d.NewDefaultProvider = new.DefaultProvider
	}

	names := slices.Sorted(maps.Keys(old.Providers))
	for _, name := range slices.Sorted(maps.Keys(new.Providers)) {
		if _, ok := old.Providers[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		o, inOld := old.Providers[name]
		n, inNew := new.Providers[name]
		switch {
		case !inNew:
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Removed: true})
		case !inOld:
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Added: true})
		case !reflect.DeepEqual(o, n):
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Modified: true})
		}
	}

	d.ServicesChanged = !reflect.DeepEqual(old.Services, new.Services)
	d.VectorStoreChanged = old.VectorStore != new.VectorStore
	return d
}

// Empty reports whether d records no change at all, as happens when only
// comments or formatting were edited.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.RequiresRestart()
}
