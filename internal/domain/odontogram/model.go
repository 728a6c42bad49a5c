package odontogram

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/odonto/odonto/internal/platform/civil"
)

// ToothID is an FDI two-digit tooth code: quadrant 1-4 followed by position
// 1-8 counted from the midline.
type ToothID int

// ParseToothID accepts the 32 permanent-dentition codes, written as exactly
// two ASCII digits.
func ParseToothID(s string) (ToothID, error) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, fmt.Errorf("invalid tooth %q: expected two digits", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid tooth %q", s)
	}
	t := ToothID(n)
	if !t.Valid() {
		return 0, fmt.Errorf("invalid tooth %q: expected 11-18, 21-28, 31-38 or 41-48", s)
	}
	return t, nil
}

func (t ToothID) Valid() bool {
	q, p := int(t)/10, int(t)%10
	return q >= 1 && q <= 4 && p >= 1 && p <= 8
}

func (t ToothID) Quadrant() int { return int(t) / 10 }
func (t ToothID) Position() int { return int(t) % 10 }

var quadrantNames = map[int]string{
	1: "upper right",
	2: "upper left",
	3: "lower left",
	4: "lower right",
}

var positionNames = map[int]string{
	1: "central incisor",
	2: "lateral incisor",
	3: "canine",
	4: "first premolar",
	5: "second premolar",
	6: "first molar",
	7: "second molar",
	8: "third molar",
}

// Describe returns the anatomical name, e.g. "first molar, lower left".
func (t ToothID) Describe() string {
	if !t.Valid() {
		return "unknown tooth"
	}
	return positionNames[t.Position()] + ", " + quadrantNames[t.Quadrant()]
}

// AllTeeth lists every tooth in chart order: upper arch right to left, then
// lower arch right to left.
func AllTeeth() []ToothID {
	out := make([]ToothID, 0, 32)
	for p := 8; p >= 1; p-- {
		out = append(out, ToothID(10+p))
	}
	for p := 1; p <= 8; p++ {
		out = append(out, ToothID(20+p))
	}
	for p := 8; p >= 1; p-- {
		out = append(out, ToothID(40+p))
	}
	for p := 1; p <= 8; p++ {
		out = append(out, ToothID(30+p))
	}
	return out
}

// Condition is the clinical status recorded for a tooth. Values read back
// from storage may fall outside the known set; see Known.
type Condition string

const (
	Healthy   Condition = "healthy"
	Cured     Condition = "cured"
	Pending   Condition = "pending"
	Decayed   Condition = "decayed"
	Extracted Condition = "extracted"
	RootCanal Condition = "root-canal"
	Crown     Condition = "crown"
	Implant   Condition = "implant"
	Fractured Condition = "fractured"
	ToExtract Condition = "to-extract"
	Bridge    Condition = "bridge"
)

var knownConditions = map[Condition]bool{
	Healthy: true, Cured: true, Pending: true, Decayed: true, Extracted: true,
	RootCanal: true, Crown: true, Implant: true, Fractured: true, ToExtract: true,
	Bridge: true,
}

func (c Condition) Known() bool { return knownConditions[c] }

// ParseCondition is for input; it rejects values outside the vocabulary.
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if !c.Known() {
		return "", fmt.Errorf("invalid condition %q", s)
	}
	return c, nil
}

const MaxNoteLength = 1000

// ClinicalEvent is one observation of one tooth. Events are never updated or
// deleted; Seq orders events that share an OccurredOn date.
type ClinicalEvent struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	ToothID    ToothID    `json:"tooth"`
	OccurredOn civil.Date `json:"occurred_on"`
	Condition  Condition  `json:"condition"`
	Note       string     `json:"note,omitempty"`
	RecordedBy string     `json:"recorded_by"`
	Seq        int64      `json:"seq"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToothState is the projected status of one tooth.
type ToothState struct {
	Tooth          ToothID     `json:"tooth"`
	Name           string      `json:"name"`
	Condition      Condition   `json:"condition"`
	Recognized     bool        `json:"recognized"`
	HasHistory     bool        `json:"has_history"`
	LastRecordedOn *civil.Date `json:"last_recorded_on,omitempty"`
}

// Chart maps every tooth to its projected state.
type Chart map[ToothID]ToothState

// Teeth returns the chart in AllTeeth order.
func (c Chart) Teeth() []ToothState {
	out := make([]ToothState, 0, len(c))
	for _, t := range AllTeeth() {
		if st, ok := c[t]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Unrecognized returns the teeth whose projected condition is outside the
// known vocabulary.
func (c Chart) Unrecognized() []ToothState {
	var out []ToothState
	for _, st := range c.Teeth() {
		if !st.Recognized {
			out = append(out, st)
		}
	}
	return out
}
