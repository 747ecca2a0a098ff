package domain

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

// Fallbacks substituted when the model leaves a field out.
const (
	DefaultTitle               = "Untitled Symphony"
	DefaultMoodAndGoal         = "A neutral, calming mood"
	DefaultCompositionalStyle  = "Ambient"
	DefaultPrimaryMoodKeyword  = "calm ambient"
	DefaultInstrumentation     = "Mixed Ensemble"
	DefaultTherapeuticElements = "Soothing Rhythms"
)

// Symphony is the normalized description of a therapeutic composition.
// Instrumentation and TherapeuticElements always hold at least one item.
type Symphony struct {
	Title               string   `json:"title"`
	MoodAndGoal         string   `json:"moodAndGoal"`
	Instrumentation     []string `json:"instrumentation"`
	CompositionalStyle  string   `json:"compositionalStyle"`
	TherapeuticElements []string `json:"therapeuticElements"`
	PrimaryMoodKeyword  string   `json:"primaryMoodKeyword"`
}

// RawSymphony is the model output before normalization. Every field is optional.
type RawSymphony struct {
	Title               string    `json:"title"`
	MoodAndGoal         string    `json:"moodAndGoal"`
	Instrumentation     CommaList `json:"instrumentation"`
	CompositionalStyle  string    `json:"compositionalStyle"`
	TherapeuticElements CommaList `json:"therapeuticElements"`
	PrimaryMoodKeyword  string    `json:"primaryMoodKeyword"`
}

// CommaList holds a comma separated list as delivered by the model.
// It also accepts a JSON array of strings, which is joined with commas.
type CommaList string

func (c *CommaList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = CommaList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*c = CommaList(strings.Join(items, ","))
	return nil
}

// NormalizeSymphony maps raw model output onto a fully populated Symphony.
func NormalizeSymphony(raw RawSymphony) Symphony {
	s := Symphony{
		Title:               orDefault(raw.Title, DefaultTitle),
		MoodAndGoal:         orDefault(raw.MoodAndGoal, DefaultMoodAndGoal),
		CompositionalStyle:  orDefault(raw.CompositionalStyle, DefaultCompositionalStyle),
		PrimaryMoodKeyword:  orDefault(raw.PrimaryMoodKeyword, DefaultPrimaryMoodKeyword),
		Instrumentation:     SplitList(string(raw.Instrumentation)),
		TherapeuticElements: SplitList(string(raw.TherapeuticElements)),
	}
	if len(s.Instrumentation) == 0 {
		s.Instrumentation = append(s.Instrumentation, DefaultInstrumentation)
	}
	if len(s.TherapeuticElements) == 0 {
		s.TherapeuticElements = append(s.TherapeuticElements, DefaultTherapeuticElements)
	}
	return s
}

// SplitList splits on commas, trims each item and drops empty ones.
func SplitList(s string) []string {
	return lo.FilterMap(strings.Split(s, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
