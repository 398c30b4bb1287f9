// Package recollection defines the long-term memory record of a persona and
// the store contract every recollection backend implements.
package recollection

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaVersion is the current version of the Recollection schema.
const SchemaVersion = 1

// Kind is the recollection taxonomy.
type Kind string

const (
	KindEducation   Kind = "education"
	KindWork        Kind = "work"
	KindFamily      Kind = "family"
	KindHobby       Kind = "hobby"
	KindTrauma      Kind = "trauma"
	KindAchievement Kind = "achievement"
	KindSocial      Kind = "social"
	KindGrowth      Kind = "growth"
	// KindSelf denotes recollections not tied to any other persona.
	KindSelf Kind = "self"
	// KindGeneral is what unknown or missing kinds are treated as.
	KindGeneral Kind = "general"
)

// Kinds lists the fixed taxonomy, KindGeneral excluded.
var Kinds = []Kind{
	KindEducation, KindWork, KindFamily, KindHobby, KindTrauma,
	KindAchievement, KindSocial, KindGrowth, KindSelf,
}

// Known reports whether k is one of the fixed taxonomy values.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind maps free text to a Kind; anything outside the taxonomy is KindGeneral.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.Known() {
		return k
	}
	return KindGeneral
}

var (
	// ErrInvalidRecollection is returned for records that fail validation.
	ErrInvalidRecollection = errors.New("invalid recollection")
	// ErrNotFound is returned when a recollection does not exist in the persona's space.
	ErrNotFound = errors.New("recollection not found")
	// ErrDuplicateID is returned when an insert names an id already in use.
	ErrDuplicateID = errors.New("recollection id already exists")
)

// Time places the recollection in the persona's life.
type Time struct {
	Age      int    `json:"age" yaml:"age"`
	Period   string `json:"period" yaml:"period"`
	Specific string `json:"specific" yaml:"specific"`
}

// Emotion captures how the event felt then and now.
type Emotion struct {
	Immediate []string `json:"immediate" yaml:"immediate"`
	Reflected []string `json:"reflected" yaml:"reflected"`
	Residual  string   `json:"residual" yaml:"residual"`
	Intensity int      `json:"intensity" yaml:"intensity"` // 1-10
}

// Importance says how much the recollection matters to the persona.
type Importance struct {
	Score     int    `json:"score" yaml:"score"` // 1-10
	Reason    string `json:"reason" yaml:"reason"`
	Frequency string `json:"frequency" yaml:"frequency"`
}

// BehaviorImpact links the recollection to present-day behavior.
type BehaviorImpact struct {
	HabitFormed     string `json:"habit_formed" yaml:"habit_formed"`
	AttitudeChange  string `json:"attitude_change" yaml:"attitude_change"`
	ResponsePattern string `json:"response_pattern" yaml:"response_pattern"`
}

// TriggerSystem lists cues that would surface the recollection.
type TriggerSystem struct {
	Sensory    []string `json:"sensory" yaml:"sensory"`
	Contextual []string `json:"contextual" yaml:"contextual"`
	Emotional  []string `json:"emotional" yaml:"emotional"`
}

// MemoryDistortion models how the persona misremembers.
type MemoryDistortion struct {
	Exaggerated string `json:"exaggerated" yaml:"exaggerated"`
	Downplayed  string `json:"downplayed" yaml:"downplayed"`
	Reason      string `json:"reason" yaml:"reason"`
}

// Recollection is one structured long-term memory of a persona.
type Recollection struct {
	ID               string           `json:"id" yaml:"id"`
	PersonaID        string           `json:"persona_id" yaml:"persona_id"`
	SchemaVersion    int              `json:"schema_version" yaml:"schema_version"`
	Kind             Kind             `json:"kind" yaml:"kind"`
	Title            string           `json:"title" yaml:"title"`
	Content          string           `json:"content" yaml:"content"`
	Time             Time             `json:"time" yaml:"time"`
	Emotion          Emotion          `json:"emotion" yaml:"emotion"`
	Importance       Importance       `json:"importance" yaml:"importance"`
	BehaviorImpact   BehaviorImpact   `json:"behavior_impact" yaml:"behavior_impact"`
	TriggerSystem    TriggerSystem    `json:"trigger_system" yaml:"trigger_system"`
	MemoryDistortion MemoryDistortion `json:"memory_distortion" yaml:"memory_distortion"`
	// RelatedPersonaID is set when the recollection concerns another persona.
	RelatedPersonaID string `json:"related_persona_id,omitempty" yaml:"related_persona_id,omitempty"`
	CreatedTs        int64  `json:"created_ts,omitempty" yaml:"-"`
	UpdatedTs        int64  `json:"updated_ts,omitempty" yaml:"-"`

	// Relevance is query-time only and never persisted.
	Relevance float64 `json:"relevance,omitempty" yaml:"-"`
}

// Normalize fills defaults for optional fields.
func (r *Recollection) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	if r.SchemaVersion == 0 {
		r.SchemaVersion = SchemaVersion
	}
	r.Kind = ParseKind(string(r.Kind))
	if r.Emotion.Intensity == 0 {
		r.Emotion.Intensity = 5
	}
	if r.Importance.Score == 0 {
		r.Importance.Score = 5
	}
}

// Validate checks required fields and ranges. Call Normalize first.
func (r *Recollection) Validate() error {
	var problems []string
	if r.Title == "" {
		problems = append(problems, "title is required")
	}
	if r.Content == "" {
		problems = append(problems, "content is required")
	}
	if r.SchemaVersion > SchemaVersion {
		problems = append(problems, fmt.Sprintf("schema_version %d is newer than supported %d", r.SchemaVersion, SchemaVersion))
	}
	if r.Emotion.Intensity < 1 || r.Emotion.Intensity > 10 {
		problems = append(problems, fmt.Sprintf("emotion.intensity %d out of range 1-10", r.Emotion.Intensity))
	}
	if r.Importance.Score < 1 || r.Importance.Score > 10 {
		problems = append(problems, fmt.Sprintf("importance.score %d out of range 1-10", r.Importance.Score))
	}
	if r.Time.Age < 0 {
		problems = append(problems, "time.age must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRecollection, strings.Join(problems, "; "))
	}
	return nil
}

// Prepare normalizes and validates a record at the store boundary.
func (r *Recollection) Prepare() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecollection)
	}
	r.Normalize()
	return r.Validate()
}

// Document returns the searchable text that is embedded for similarity search.
func (r *Recollection) Document() string {
	return r.Title + ": " + r.Content
}

// Clone returns a deep copy.
func (r *Recollection) Clone() *Recollection {
	cp := *r
	cp.Emotion.Immediate = append([]string(nil), r.Emotion.Immediate...)
	cp.Emotion.Reflected = append([]string(nil), r.Emotion.Reflected...)
	cp.TriggerSystem.Sensory = append([]string(nil), r.TriggerSystem.Sensory...)
	cp.TriggerSystem.Contextual = append([]string(nil), r.TriggerSystem.Contextual...)
	cp.TriggerSystem.Emotional = append([]string(nil), r.TriggerSystem.Emotional...)
	return &cp
}

// Persistable returns a copy with query-time fields cleared.
func (r *Recollection) Persistable() *Recollection {
	cp := r.Clone()
	cp.Relevance = 0
	return cp
}

// RelevanceFromDistance converts a squared L2 distance between unit vectors
// (2 - 2*cos, range [0,4]) into a relevance score in [0,1]: 1 - d/2, clamped.
func RelevanceFromDistance(distance float64) float64 {
	r := 1 - distance/2
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// DistanceFromCosine converts cosine similarity into the distance RelevanceFromDistance expects.
func DistanceFromCosine(cos float64) float64 {
	return 2 - 2*cos
}
