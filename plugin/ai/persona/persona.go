// Package persona holds the character profiles that conversations are voiced in.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a persona id is unknown.
var ErrNotFound = errors.New("persona not found")

// ErrInvalidPersona is returned for profiles that fail validation.
var ErrInvalidPersona = errors.New("invalid persona")

// Personality is the five-axis personality vector, each axis 0-100.
type Personality struct {
	Openness          int `json:"openness" yaml:"openness"`
	Conscientiousness int `json:"conscientiousness" yaml:"conscientiousness"`
	Extraversion      int `json:"extraversion" yaml:"extraversion"`
	Agreeableness     int `json:"agreeableness" yaml:"agreeableness"`
	Neuroticism       int `json:"neuroticism" yaml:"neuroticism"`
}

// Persona is a flat trait record. It is never mutated during a turn.
type Persona struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Age            int         `json:"age" yaml:"age"`
	Gender         string      `json:"gender" yaml:"gender"`
	Occupation     string      `json:"occupation" yaml:"occupation"`
	Hobby          string      `json:"hobby" yaml:"hobby"`
	Skill          string      `json:"skill" yaml:"skill"`
	Values         string      `json:"values" yaml:"values"`
	LivingHabit    string      `json:"living_habit" yaml:"living_habit"`
	Dislike        string      `json:"dislike" yaml:"dislike"`
	LanguageStyle  string      `json:"language_style" yaml:"language_style"`
	SpeechStyle    string      `json:"speech_style" yaml:"speech_style"`
	Appearance     string      `json:"appearance" yaml:"appearance"`
	FamilyStatus   string      `json:"family_status" yaml:"family_status"`
	Education      string      `json:"education" yaml:"education"`
	SocialPattern  string      `json:"social_pattern" yaml:"social_pattern"`
	FavoriteThing  string      `json:"favorite_thing" yaml:"favorite_thing"`
	UsualPlace     string      `json:"usual_place" yaml:"usual_place"`
	PastExperience string      `json:"past_experience" yaml:"past_experience"`
	Background     string      `json:"background" yaml:"background"`
	Personality    Personality `json:"personality" yaml:"personality"`
}

// Validate checks the fields every prompt relies on.
func (p *Persona) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Age < 0 {
		problems = append(problems, "age must not be negative")
	}
	axes := map[string]int{
		"openness":          p.Personality.Openness,
		"conscientiousness": p.Personality.Conscientiousness,
		"extraversion":      p.Personality.Extraversion,
		"agreeableness":     p.Personality.Agreeableness,
		"neuroticism":       p.Personality.Neuroticism,
	}
	for _, axis := range []string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"} {
		if v := axes[axis]; v < 0 || v > 100 {
			problems = append(problems, fmt.Sprintf("personality.%s %d out of range 0-100", axis, v))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPersona, strings.Join(problems, "; "))
	}
	return nil
}

// Describe renders the persona as a trait sheet for prompts. Empty traits are omitted.
func (p *Persona) Describe() string {
	var sb strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		sb.WriteString(label)
		sb.WriteString("：")
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	line("姓名", p.Name)
	if p.Age > 0 {
		line("年龄", fmt.Sprintf("%d岁", p.Age))
	}
	line("性别", p.Gender)
	line("职业", p.Occupation)
	line("教育", p.Education)
	line("家庭", p.FamilyStatus)
	line("爱好", p.Hobby)
	line("特长", p.Skill)
	line("价值观", p.Values)
	line("生活习惯", p.LivingHabit)
	line("讨厌", p.Dislike)
	line("喜欢的东西", p.FavoriteThing)
	line("常去的地方", p.UsualPlace)
	line("社交方式", p.SocialPattern)
	line("外貌", p.Appearance)
	line("语言风格", p.LanguageStyle)
	line("说话方式", p.SpeechStyle)
	line("过往经历", p.PastExperience)
	line("背景", p.Background)
	sb.WriteString(fmt.Sprintf("性格（0-100）：开放性%d，尽责性%d，外向性%d，宜人性%d，神经质%d\n",
		p.Personality.Openness, p.Personality.Conscientiousness, p.Personality.Extraversion,
		p.Personality.Agreeableness, p.Personality.Neuroticism))
	return sb.String()
}
