package domain

// Platform names.
const (
	PlatformAlice   = "alice"
	PlatformMarusya = "marusya"
	PlatformWeb     = "web"
)

// PlatformProfile declares the formatting bounds of one external protocol.
type PlatformProfile struct {
	Name           string `yaml:"name"`
	MaxText        int    `yaml:"max_text"`
	MaxSpeech      int    `yaml:"max_speech"`
	MaxActions     int    `yaml:"max_actions"`
	MaxActionLabel int    `yaml:"max_action_label"`
	// PauseMarker is inserted into speech at clause boundaries; empty disables it.
	PauseMarker string `yaml:"pause_marker"`
	// StripSymbolsInText applies speech symbol stripping to display text too.
	StripSymbolsInText bool `yaml:"strip_symbols_in_text"`
	SupportsData       bool `yaml:"supports_data"`
}

// DefaultProfiles returns the built-in profiles keyed by platform name.
func DefaultProfiles() map[string]PlatformProfile {
	return map[string]PlatformProfile{
		PlatformAlice: {
			Name:           PlatformAlice,
			MaxText:        1024,
			MaxSpeech:      1024,
			MaxActions:     5,
			MaxActionLabel: 64,
			PauseMarker:    "sil <[200]>",
		},
		PlatformMarusya: {
			Name:           PlatformMarusya,
			MaxText:        1024,
			MaxSpeech:      1024,
			MaxActions:     5,
			MaxActionLabel: 64,
			PauseMarker:    "-",
		},
		PlatformWeb: {
			Name:           PlatformWeb,
			MaxText:        4096,
			MaxSpeech:      2048,
			MaxActions:     8,
			MaxActionLabel: 64,
			SupportsData:   true,
		},
	}
}

// Merge fills zero fields of p from base.
func (p PlatformProfile) Merge(base PlatformProfile) PlatformProfile {
	if p.Name == "" {
		p.Name = base.Name
	}
	if p.MaxText <= 0 {
		p.MaxText = base.MaxText
	}
	if p.MaxSpeech <= 0 {
		p.MaxSpeech = base.MaxSpeech
	}
	if p.MaxActions <= 0 {
		p.MaxActions = base.MaxActions
	}
	if p.MaxActionLabel <= 0 {
		p.MaxActionLabel = base.MaxActionLabel
	}
	if p.PauseMarker == "" {
		p.PauseMarker = base.PauseMarker
	}
	return p
}
