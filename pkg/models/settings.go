package models

// GenerationSettings is the process-wide generation configuration.
// Updates are last-write-wins and visible to subsequent queries only;
// in-flight queries keep the snapshot they started with.
type GenerationSettings struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Streaming   bool    `json:"streaming" yaml:"streaming"`
}

// Merge returns a copy of s with the set fields of patch applied.
func (s GenerationSettings) Merge(patch SettingsPatch) GenerationSettings {
	out := s
	if patch.Model != nil {
		out.Model = *patch.Model
	}
	if patch.Temperature != nil {
		out.Temperature = *patch.Temperature
	}
	if patch.MaxTokens != nil {
		out.MaxTokens = *patch.MaxTokens
	}
	if patch.Streaming != nil {
		out.Streaming = *patch.Streaming
	}
	return out
}

// SettingsPatch is a partial settings update; nil fields are left
// unchanged.
type SettingsPatch struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Streaming   *bool    `json:"streaming,omitempty"`
}
