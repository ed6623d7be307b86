package sources

// DefaultSettings returns the settings used for a source that the config
// file does not mention.
func DefaultSettings() Settings {
	return Settings{Enabled: true, Months: defaultHorizonMonths, RehostImages: true}
}

// BuiltinNames lists every adapter this binary ships, in crawl order.
var BuiltinNames = []string{NewHopeWineryName, MercerCountyParkName}

// Builtin constructs the registry of enabled adapters. Sources missing
// from settings use DefaultSettings.
func Builtin(settings map[string]Settings, opts Options) *Registry {
	get := func(name string) Settings {
		if s, ok := settings[name]; ok {
			return s
		}
		return DefaultSettings()
	}

	r := NewRegistry()
	if s := get(NewHopeWineryName); s.Enabled {
		r.Register(NewNewHopeWinery(s, opts))
	}
	if s := get(MercerCountyParkName); s.Enabled {
		r.Register(NewMercerCountyPark(s, opts))
	}
	return r
}
