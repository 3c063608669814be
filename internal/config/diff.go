package config

import (
	"fmt"
	"reflect"
	"sort"
)

// ChangeType is a closed tagged variant for a single diff entry's nature.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ChangeCategory distinguishes what kind of entity a Change describes.
type ChangeCategory string

const (
	CategoryAgent    ChangeCategory = "agent"
	CategorySchedule ChangeCategory = "schedule"
	CategoryFleet    ChangeCategory = "fleet"
)

// Change is one entry in a diff result, used by hot reload to emit a minimal
// event set instead of re-registering the entire fleet.
type Change struct {
	Type          ChangeType
	Category      ChangeCategory
	QualifiedName string
	Details       string
}

// Diff compares two resolved configs and returns the minimal change set.
// Reordering sibling fleet entries with no content change yields no
// agent-level changes (P3), because comparison is keyed by qualified name,
// not position.
func Diff(prev, next *ResolvedConfig) []Change {
	var changes []Change

	prevByName := map[string]*Agent{}
	if prev != nil {
		for i := range prev.Agents {
			prevByName[prev.Agents[i].QualifiedName] = &prev.Agents[i]
		}
	}
	nextByName := map[string]*Agent{}
	if next != nil {
		for i := range next.Agents {
			nextByName[next.Agents[i].QualifiedName] = &next.Agents[i]
		}
	}

	for name, a := range nextByName {
		if _, ok := prevByName[name]; !ok {
			changes = append(changes, Change{Type: ChangeAdded, Category: CategoryAgent, QualifiedName: name})
			continue
		}
		if !reflect.DeepEqual(prevByName[name], a) {
			changes = append(changes, Change{Type: ChangeModified, Category: CategoryAgent, QualifiedName: name})
		}
	}
	for name := range prevByName {
		if _, ok := nextByName[name]; !ok {
			changes = append(changes, Change{Type: ChangeRemoved, Category: CategoryAgent, QualifiedName: name})
		}
	}

	changes = append(changes, diffSchedules(prevByName, nextByName)...)

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].QualifiedName != changes[j].QualifiedName {
			return changes[i].QualifiedName < changes[j].QualifiedName
		}
		return changes[i].Type < changes[j].Type
	})
	return changes
}

func diffSchedules(prevByName, nextByName map[string]*Agent) []Change {
	var changes []Change
	for name, a := range nextByName {
		prevA, existed := prevByName[name]
		prevSched := map[string]Schedule{}
		if existed {
			for _, s := range prevA.Schedules {
				prevSched[s.Name] = s
			}
		}
		nextSched := map[string]Schedule{}
		for _, s := range a.Schedules {
			nextSched[s.Name] = s
		}
		for sname, s := range nextSched {
			qname := fmt.Sprintf("%s.%s", name, sname)
			if old, ok := prevSched[sname]; !ok {
				changes = append(changes, Change{Type: ChangeAdded, Category: CategorySchedule, QualifiedName: qname})
			} else if !reflect.DeepEqual(old, s) {
				changes = append(changes, Change{Type: ChangeModified, Category: CategorySchedule, QualifiedName: qname})
			}
		}
		for sname := range prevSched {
			if _, ok := nextSched[sname]; !ok {
				changes = append(changes, Change{Type: ChangeRemoved, Category: CategorySchedule, QualifiedName: fmt.Sprintf("%s.%s", name, sname)})
			}
		}
	}
	return changes
}
