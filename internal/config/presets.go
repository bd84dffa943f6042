package config

// Preset определяет именованный уровень качества.
type Preset string

const (
	// PresetBest - лучшее качество, слабое сжатие.
	PresetBest Preset = "best"
	// PresetBalanced - баланс качества и размера.
	PresetBalanced Preset = "balanced"
	// PresetHigh - сильное сжатие.
	PresetHigh Preset = "high"
	// PresetExtreme - максимальное сжатие.
	PresetExtreme Preset = "extreme"
)

// PresetConfig содержит настройки для пресета.
type PresetConfig struct {
	// Quality - коэффициент качества.
	Quality float64
	// Description - описание для пользователя.
	Description string
}

// Presets содержит все доступные пресеты.
var Presets = map[Preset]PresetConfig{
	PresetBest:     {Quality: 1.0, Description: "Best quality (low compression)"},
	PresetBalanced: {Quality: 0.5, Description: "Balanced"},
	PresetHigh:     {Quality: 0.1, Description: "High compression"},
	PresetExtreme:  {Quality: 0.002, Description: "Extreme"},
}

// ApplyPreset применяет пресет к конфигурации.
// Возвращает true, если пресет был применён.
func (c *Config) ApplyPreset(preset string) bool {
	p, ok := Presets[Preset(preset)]
	if !ok {
		return false
	}

	c.Quality = p.Quality
	return true
}

// PresetQuality возвращает качество пресета.
func PresetQuality(preset string) (float64, bool) {
	p, ok := Presets[Preset(preset)]
	return p.Quality, ok
}

// ValidPresets возвращает список пресетов от лучшего качества к худшему.
func ValidPresets() []string {
	return []string{
		string(PresetBest),
		string(PresetBalanced),
		string(PresetHigh),
		string(PresetExtreme),
	}
}
