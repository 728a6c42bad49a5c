package odontogram

import (
	"sort"

	"github.com/odonto/odonto/internal/platform/civil"
)

// EventLog holds one tooth's events ordered by OccurredOn, with events that
// share a date kept in append order. The order is maintained on Append so
// queries never sort.
type EventLog struct {
	events []ClinicalEvent
}

func NewEventLog(events ...ClinicalEvent) *EventLog {
	l := &EventLog{events: make([]ClinicalEvent, 0, len(events))}
	for _, e := range events {
		l.Append(e)
	}
	return l
}

// Append inserts e after every event dated on or before e.OccurredOn.
func (l *EventLog) Append(e ClinicalEvent) {
	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].OccurredOn.After(e.OccurredOn)
	})
	l.events = append(l.events, ClinicalEvent{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = e
}

func (l *EventLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// Events returns a copy of the ordered log.
func (l *EventLog) Events() []ClinicalEvent {
	if l == nil {
		return nil
	}
	out := make([]ClinicalEvent, len(l.events))
	copy(out, l.events)
	return out
}

// lastAsOf returns the index of the last event dated on or before asOf, or -1.
func (l *EventLog) lastAsOf(asOf civil.Date) int {
	if l == nil {
		return -1
	}
	return sort.Search(len(l.events), func(i int) bool {
		return l.events[i].OccurredOn.After(asOf)
	}) - 1
}

// CurrentState is the condition of the chronologically last event, or
// Healthy for an empty log.
func CurrentState(l *EventLog) Condition {
	if l.Len() == 0 {
		return Healthy
	}
	return l.events[len(l.events)-1].Condition
}

// StateAsOf ignores events after asOf and returns the condition of the last
// remaining event, or Healthy if none remain.
func StateAsOf(l *EventLog, asOf civil.Date) Condition {
	i := l.lastAsOf(asOf)
	if i < 0 {
		return Healthy
	}
	return l.events[i].Condition
}

// GroupByUnit splits a patient's events into per-tooth logs. Input order is
// taken as insertion order for events sharing a date.
func GroupByUnit(events []ClinicalEvent) map[ToothID]*EventLog {
	groups := make(map[ToothID]*EventLog)
	for _, e := range events {
		l, ok := groups[e.ToothID]
		if !ok {
			l = &EventLog{}
			groups[e.ToothID] = l
		}
		l.Append(e)
	}
	return groups
}

// ProjectChart computes the state of all 32 teeth. A nil asOf projects the
// current state. HasHistory reflects the whole log, so a tooth first treated
// after asOf still shows as having history. Conditions outside the vocabulary
// are returned verbatim with Recognized false.
func ProjectChart(groups map[ToothID]*EventLog, asOf *civil.Date) Chart {
	chart := make(Chart, 32)
	for _, t := range AllTeeth() {
		l := groups[t]
		idx := l.Len() - 1
		if asOf != nil {
			idx = l.lastAsOf(*asOf)
		}

		st := ToothState{
			Tooth:      t,
			Name:       t.Describe(),
			Condition:  Healthy,
			Recognized: true,
			HasHistory: l.Len() > 0,
		}
		if idx >= 0 {
			e := l.events[idx]
			on := e.OccurredOn
			st.Condition = e.Condition
			st.Recognized = e.Condition.Known()
			st.LastRecordedOn = &on
		}
		chart[t] = st
	}
	return chart
}
