package state

import (
	"encoding/json"
	"maps"
)

// BlockingMode controls when the blocklist is enforced.
type BlockingMode string

const (
	// BlockAlways enforces the blocklist whenever blocking is enabled.
	BlockAlways BlockingMode = "always"
	// BlockDuringWork enforces it only while a work session is running.
	BlockDuringWork BlockingMode = "work"
)

// Settings holds user preferences. Keys this build does not know about are
// kept in Extra and written back unchanged, so an older client never strips
// preferences a newer one introduced.
type Settings struct {
	WorkDuration       int          `json:"workDuration"`
	ShortBreakDuration int          `json:"shortBreakDuration"`
	LongBreakDuration  int          `json:"longBreakDuration"`
	LongBreakInterval  int          `json:"longBreakInterval"`
	AutoStartBreaks    bool         `json:"autoStartBreaks"`
	AutoStartPomodoros bool         `json:"autoStartPomodoros"`
	SoundEnabled       bool         `json:"soundEnabled"`
	Volume             int          `json:"volume"`
	DailyGoal          int          `json:"dailyGoal"`
	Theme              string       `json:"theme"`
	AmbientEnabled     bool         `json:"ambientEnabled"`
	AmbientType        string       `json:"ambientType"`
	AmbientVolume      int          `json:"ambientVolume"`
	Blocklist          []string     `json:"blocklist"`
	BlockingEnabled    bool         `json:"blockingEnabled"`
	BlockingMode       BlockingMode `json:"blockingMode"`

	Extra map[string]json.RawMessage `json:"-"`
}

// DefaultSettings returns the built-in preferences.
func DefaultSettings() Settings {
	return Settings{
		WorkDuration:       25,
		ShortBreakDuration: 5,
		LongBreakDuration:  15,
		LongBreakInterval:  4,
		SoundEnabled:       true,
		Volume:             70,
		DailyGoal:          8,
		Theme:              "dark",
		AmbientType:        "rain",
		AmbientVolume:      40,
		Blocklist:          []string{},
		BlockingEnabled:    true,
		BlockingMode:       BlockDuringWork,
	}
}

// settingsFields is an alias without methods so the custom codec can reuse
// the default struct encoding.
type settingsFields Settings

// knownSettingsKeys lists the JSON keys owned by typed fields.
var knownSettingsKeys = map[string]bool{
	"workDuration": true, "shortBreakDuration": true, "longBreakDuration": true,
	"longBreakInterval": true, "autoStartBreaks": true, "autoStartPomodoros": true,
	"soundEnabled": true, "volume": true, "dailyGoal": true, "theme": true,
	"ambientEnabled": true, "ambientType": true, "ambientVolume": true,
	"blocklist": true, "blockingEnabled": true, "blockingMode": true,
}

// UnmarshalJSON overlays data onto the receiver: keys absent from data keep
// their current value, unknown keys are collected into Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := settingsFields(*s)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra := maps.Clone(s.Extra)
	for k, v := range raw {
		if knownSettingsKeys[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	*s = Settings(fields)
	s.Extra = extra
	return nil
}

// MarshalJSON writes typed fields and Extra as one flat object.
func (s Settings) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(settingsFields(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return typed, nil
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(typed, &flat); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if !knownSettingsKeys[k] {
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.Blocklist == nil {
		s.Blocklist = []string{}
	}
	if s.BlockingMode != BlockAlways && s.BlockingMode != BlockDuringWork {
		s.BlockingMode = def.BlockingMode
	}
	if s.WorkDuration <= 0 {
		s.WorkDuration = def.WorkDuration
	}
	if s.ShortBreakDuration <= 0 {
		s.ShortBreakDuration = def.ShortBreakDuration
	}
	if s.LongBreakDuration <= 0 {
		s.LongBreakDuration = def.LongBreakDuration
	}
	if s.LongBreakInterval <= 0 {
		s.LongBreakInterval = def.LongBreakInterval
	}
	return s
}

func (s Settings) clone() Settings {
	s.Blocklist = append([]string(nil), s.Blocklist...)
	if s.Blocklist == nil {
		s.Blocklist = []string{}
	}
	s.Extra = maps.Clone(s.Extra)
	return s
}
