package timesheet

import "time"

// StoryRollup records how a Story's figures were replaced by its subtasks.
type StoryRollup struct {
	StoryKey         string
	ChildKeys        []string
	ExcludedKeys     []string
	PreviousEstimate *time.Duration
	Estimate         time.Duration
	PreviousActual   float64
	HadActual        bool
	Actual           float64
	ActualApplied    bool
}

// Reconciliation is the result of rolling subtask data up into Stories.
// Issues and IssueHours are fresh copies; the inputs are left untouched.
type Reconciliation struct {
	Issues     Index
	IssueHours map[string]float64
	Rollups    []StoryRollup
}

// ChildKeys maps each parent key to its child keys, combining the parent
// links on children with the subtask lists carried by parents. Order
// follows first appearance in issues.
func ChildKeys(issues []Issue) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	add := func(parent, child string) {
		if parent == "" || child == "" {
			return
		}
		if seen[parent] == nil {
			seen[parent] = make(map[string]bool)
		}
		if seen[parent][child] {
			return
		}
		seen[parent][child] = true
		out[parent] = append(out[parent], child)
	}
	for _, is := range issues {
		for _, sub := range is.SubtaskKeys {
			add(is.Key, sub)
		}
	}
	for _, is := range issues {
		add(is.ParentKey, is.Key)
	}
	return out
}

// Reconcile overrides each Story's estimate and actual hours with the sums
// of its subtasks whose status is not excluded.
//
// The estimate is replaced whenever at least one valid subtask exists, even
// if the sum is zero. The actual is replaced only when the summed actual is
// positive, so a zero sum never erases hours logged on the Story itself.
func Reconcile(issues []Issue, issueHours map[string]float64, excluded StatusSet) Reconciliation {
	res := Reconciliation{
		Issues:     NewIndex(issues),
		IssueHours: make(map[string]float64, len(issueHours)),
	}
	for k, v := range issueHours {
		res.IssueHours[k] = v
	}

	subtasks := make(Index)
	for _, is := range issues {
		if is.Type == TypeSubtask {
			subtasks[is.Key] = is
		}
	}

	children := ChildKeys(issues)

	for _, story := range issues {
		if story.Type != TypeStory {
			continue
		}
		keys := children[story.Key]
		if len(keys) == 0 {
			continue
		}

		rollup := StoryRollup{StoryKey: story.Key}
		var estimate time.Duration
		var actual float64
		for _, key := range keys {
			child, ok := subtasks[key]
			if !ok {
				continue
			}
			if excluded.Contains(child.Status) {
				rollup.ExcludedKeys = append(rollup.ExcludedKeys, key)
				continue
			}
			rollup.ChildKeys = append(rollup.ChildKeys, key)
			if child.OriginalEstimate != nil {
				estimate += *child.OriginalEstimate
			}
			if h, ok := issueHours[key]; ok {
				actual += h
			}
		}
		if len(rollup.ChildKeys) == 0 {
			continue
		}

		rollup.PreviousEstimate = story.OriginalEstimate
		rollup.Estimate = estimate
		rollup.PreviousActual, rollup.HadActual = issueHours[story.Key]
		rollup.Actual = actual

		story.OriginalEstimate = durationPtr(estimate)
		res.Issues[story.Key] = story
		if actual > 0 {
			res.IssueHours[story.Key] = actual
			rollup.ActualApplied = true
		}
		res.Rollups = append(res.Rollups, rollup)
	}

	return res
}
