package progress

import "sort"

// TaskSet is a sorted set of completed task IDs.
type TaskSet []int

// NewTaskSet builds a set from ids, dropping duplicates and non-positive ids.
func NewTaskSet(ids ...int) TaskSet {
	seen := make(map[int]bool, len(ids))
	out := make(TaskSet, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Contains reports whether id is in the set.
func (ts TaskSet) Contains(id int) bool {
	i := sort.SearchInts(ts, id)
	return i < len(ts) && ts[i] == id
}

// Clone returns a copy of the set.
func (ts TaskSet) Clone() TaskSet {
	if ts == nil {
		return nil
	}
	return append(TaskSet(nil), ts...)
}

// ToggleTask flips the membership of taskID and returns a new set.
// The input set is never modified.
func ToggleTask(set TaskSet, taskID int) TaskSet {
	if set.Contains(taskID) {
		out := make(TaskSet, 0, len(set))
		for _, id := range set {
			if id != taskID {
				out = append(out, id)
			}
		}
		return out
	}
	return NewTaskSet(append(set.Clone(), taskID)...)
}

// TasksComplete reports whether every required task is in completed.
func TasksComplete(completed TaskSet, required []int) bool {
	for _, id := range required {
		if !completed.Contains(id) {
			return false
		}
	}
	return true
}
