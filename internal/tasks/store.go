package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/relayfleet/relayfleet/internal/lockfile"
	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/paths"
)

// Store implements the task graph operations against one JSON file per
// task, each mutation serialized through the team's task lock so edge
// updates spanning two task files are never observed half-applied.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Create adds a new task to team with the next sequential id.
func (s *Store) Create(team, subject, description, activeForm string, metadata map[string]any) (Task, error) {
	if strings.TrimSpace(subject) == "" {
		return Task{}, ErrEmptySubject
	}
	if !paths.TeamExists(s.Root, team) {
		return Task{}, ErrTeamNotFound
	}
	teamDir := paths.TaskTeamDir(s.Root, team)
	if err := os.MkdirAll(teamDir, 0o755); err != nil {
		return Task{}, err
	}

	lk, err := lockfile.Acquire(paths.TaskLockPath(s.Root, team))
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = lk.Close() }()

	id, err := nextTaskID(teamDir)
	if err != nil {
		return Task{}, err
	}
	task := newTask(id, subject, description, activeForm, metadata)
	if err := writeTask(paths.TaskPath(s.Root, team, id), task); err != nil {
		return Task{}, err
	}
	log.Debug(log.CatTask, "created task", "team", team, "id", id)
	return task, nil
}

// Get returns the task identified by id within team.
func (s *Store) Get(team, id string) (Task, error) {
	task, err := readTask(paths.TaskPath(s.Root, team, id))
	if os.IsNotExist(err) {
		return Task{}, ErrTaskNotFound
	}
	return task, err
}

// List returns every task in team, ordered by numeric id.
func (s *Store) List(team string) ([]Task, error) {
	if !paths.TeamExists(s.Root, team) {
		return nil, ErrTeamNotFound
	}
	teamDir := paths.TaskTeamDir(s.Root, team)
	ids, err := validTaskIDs(teamDir)
	if err != nil {
		return nil, err
	}
	sort.Ints(ids)
	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := readTask(paths.TaskPath(s.Root, team, strconv.Itoa(id)))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateOpts describes the mutations to apply to a task in a single
// locked transaction. A nil pointer/slice/map field means "leave
// unchanged"; Owner can be set but not cleared here — ResetOwnerTasks
// is the only operation that clears an owner.
type UpdateOpts struct {
	Status       *Status
	Owner        *string
	Subject      *string
	Description  *string
	ActiveForm   *string
	AddBlocks    []string
	AddBlockedBy []string
	// Metadata merges into the task's existing metadata; a key mapped
	// to nil deletes that key. A nil Metadata means no change.
	Metadata map[string]any
}

// Update applies opts to the task identified by id within team,
// validating edge references, rejecting cycles, and gating status
// transitions on blocker completion, all under the team's task lock.
func (s *Store) Update(team, id string, opts UpdateOpts) (Task, error) {
	teamDir := paths.TaskTeamDir(s.Root, team)
	path := paths.TaskPath(s.Root, team, id)

	lk, err := lockfile.Acquire(paths.TaskLockPath(s.Root, team))
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = lk.Close() }()

	task, err := readTask(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}

	if err := validateEdgeRefs(teamDir, id, opts.AddBlocks); err != nil {
		return Task{}, err
	}
	if err := validateEdgeRefs(teamDir, id, opts.AddBlockedBy); err != nil {
		return Task{}, err
	}

	pendingEdges := map[string]map[string]bool{}
	for _, b := range opts.AddBlocks {
		addEdge(pendingEdges, b, id)
	}
	for _, b := range opts.AddBlockedBy {
		addEdge(pendingEdges, id, b)
	}
	for _, b := range opts.AddBlocks {
		if wouldCreateCycle(teamDir, b, id, pendingEdges) {
			return Task{}, fmt.Errorf("%w: %s -> %s", ErrCycle, id, b)
		}
	}
	for _, b := range opts.AddBlockedBy {
		if wouldCreateCycle(teamDir, id, b, pendingEdges) {
			return Task{}, fmt.Errorf("%w: %s blocked by %s", ErrCycle, id, b)
		}
	}

	if opts.Status != nil && *opts.Status != StatusDeleted {
		if err := validateStatusTransition(teamDir, task, *opts.Status, opts.AddBlockedBy); err != nil {
			return Task{}, err
		}
	}

	pendingWrites := map[string]Task{}
	applyScalarFields(&task, opts)
	if err := applyEdges(teamDir, &task, id, opts.AddBlocks, opts.AddBlockedBy, pendingWrites); err != nil {
		return Task{}, err
	}
	if opts.Metadata != nil {
		applyMetadata(&task, opts.Metadata)
	}
	applyStatusAndCleanup(teamDir, &task, id, opts.Status, pendingWrites)

	if err := writeTaskUpdates(path, task, opts.Status, pendingWrites); err != nil {
		return Task{}, err
	}
	log.Debug(log.CatTask, "updated task", "team", team, "id", id)
	return task, nil
}

// ResetOwnerTasks clears agent's ownership of every task in team,
// reverting non-completed tasks to pending. Used when an agent shuts
// down so its in-flight work returns to the pool.
func (s *Store) ResetOwnerTasks(team, agent string) error {
	teamDir := paths.TaskTeamDir(s.Root, team)

	lk, err := lockfile.Acquire(paths.TaskLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	ids, err := validTaskIDs(teamDir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		idStr := strconv.Itoa(id)
		path := paths.TaskPath(s.Root, team, idStr)
		task, err := readTask(path)
		if err != nil {
			return err
		}
		if task.Owner == nil || *task.Owner != agent {
			continue
		}
		if task.Status != StatusCompleted {
			task.Status = StatusPending
		}
		task.Owner = nil
		if err := writeTask(path, task); err != nil {
			return err
		}
	}
	log.Debug(log.CatTask, "reset owner tasks", "team", team, "agent", agent)
	return nil
}

func nextTaskID(teamDir string) (string, error) {
	ids, err := validTaskIDs(teamDir)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "1", nil
	}
	max := ids[0]
	for _, id := range ids[1:] {
		if id > max {
			max = id
		}
	}
	return strconv.Itoa(max + 1), nil
}

// validTaskIDs lists the numeric ids of task files directly under
// teamDir, ignoring the lock file and anything non-numeric.
func validTaskIDs(teamDir string) ([]int, error) {
	entries, err := os.ReadDir(teamDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []int
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		id, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validateEdgeRefs(teamDir, taskID string, ids []string) error {
	for _, b := range ids {
		if b == taskID {
			return ErrSelfReference
		}
		if _, err := os.Stat(filepath.Join(teamDir, b+".json")); err != nil {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, b)
		}
	}
	return nil
}

func addEdge(edges map[string]map[string]bool, key, val string) {
	if edges[key] == nil {
		edges[key] = map[string]bool{}
	}
	edges[key][val] = true
}

// wouldCreateCycle reports whether adding a blocked_by edge from
// fromID to toID would create a cycle, by breadth-first search from
// toID through blocked_by chains (on-disk and pending) looking for a
// path back to fromID.
func wouldCreateCycle(teamDir, fromID, toID string, pendingEdges map[string]map[string]bool) bool {
	visited := map[string]bool{}
	queue := []string{toID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == fromID {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		if task, err := readTask(filepath.Join(teamDir, current+".json")); err == nil {
			for _, d := range task.BlockedBy {
				if !visited[d] {
					queue = append(queue, d)
				}
			}
		}
		for d := range pendingEdges[current] {
			if !visited[d] {
				queue = append(queue, d)
			}
		}
	}
	return false
}

func validateStatusTransition(teamDir string, task Task, status Status, addBlockedBy []string) error {
	curOrder, ok := statusOrder[task.Status]
	if !ok {
		curOrder = 0
	}
	newOrder, ok := statusOrder[status]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if newOrder < curOrder {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, task.Status, status)
	}
	if status != StatusInProgress && status != StatusCompleted {
		return nil
	}
	effective := map[string]bool{}
	for _, b := range task.BlockedBy {
		effective[b] = true
	}
	for _, b := range addBlockedBy {
		effective[b] = true
	}
	for blockerID := range effective {
		blocker, err := readTask(filepath.Join(teamDir, blockerID+".json"))
		if err != nil {
			continue
		}
		if blocker.Status != StatusCompleted {
			return fmt.Errorf("%w: blocked by task %s (status: %s)", ErrBlocked, blockerID, blocker.Status)
		}
	}
	return nil
}

func applyScalarFields(task *Task, opts UpdateOpts) {
	if opts.Subject != nil {
		task.Subject = *opts.Subject
	}
	if opts.Description != nil {
		task.Description = *opts.Description
	}
	if opts.ActiveForm != nil {
		task.ActiveForm = *opts.ActiveForm
	}
	if opts.Owner != nil {
		task.Owner = opts.Owner
	}
}

func readOrPending(path string, pendingWrites map[string]Task) (Task, error) {
	if t, ok := pendingWrites[path]; ok {
		return t, nil
	}
	return readTask(path)
}

func applyEdges(teamDir string, task *Task, taskID string, addBlocks, addBlockedBy []string, pendingWrites map[string]Task) error {
	for _, b := range addBlocks {
		if !containsStr(task.Blocks, b) {
			task.Blocks = append(task.Blocks, b)
		}
		path := filepath.Join(teamDir, b+".json")
		other, err := readOrPending(path, pendingWrites)
		if err != nil {
			return err
		}
		if !containsStr(other.BlockedBy, taskID) {
			other.BlockedBy = append(other.BlockedBy, taskID)
		}
		pendingWrites[path] = other
	}
	for _, b := range addBlockedBy {
		if !containsStr(task.BlockedBy, b) {
			task.BlockedBy = append(task.BlockedBy, b)
		}
		path := filepath.Join(teamDir, b+".json")
		other, err := readOrPending(path, pendingWrites)
		if err != nil {
			return err
		}
		if !containsStr(other.Blocks, taskID) {
			other.Blocks = append(other.Blocks, taskID)
		}
		pendingWrites[path] = other
	}
	return nil
}

func applyMetadata(task *Task, metadata map[string]any) {
	current := task.Metadata
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range metadata {
		if v == nil {
			delete(current, k)
		} else {
			current[k] = v
		}
	}
	if len(current) == 0 {
		task.Metadata = nil
	} else {
		task.Metadata = current
	}
}

func applyStatusAndCleanup(teamDir string, task *Task, taskID string, status *Status, pendingWrites map[string]Task) {
	if status == nil {
		return
	}
	if *status != StatusDeleted {
		task.Status = *status
		if *status == StatusCompleted {
			cleanTaskReferences(teamDir, taskID, pendingWrites, false)
		}
		return
	}
	task.Status = StatusDeleted
	cleanTaskReferences(teamDir, taskID, pendingWrites, true)
}

// cleanTaskReferences removes taskID from other tasks' blocked_by
// lists (always) and blocks lists (only when removeBlocks, i.e. on
// deletion), queuing the touched files into pendingWrites.
func cleanTaskReferences(teamDir, taskID string, pendingWrites map[string]Task, removeBlocks bool) {
	ids, err := validTaskIDs(teamDir)
	if err != nil {
		return
	}
	for _, id := range ids {
		idStr := strconv.Itoa(id)
		if idStr == taskID {
			continue
		}
		path := filepath.Join(teamDir, idStr+".json")
		other, err := readOrPending(path, pendingWrites)
		if err != nil {
			continue
		}
		changed := false
		if containsStr(other.BlockedBy, taskID) {
			other.BlockedBy = removeStr(other.BlockedBy, taskID)
			changed = true
		}
		if removeBlocks && containsStr(other.Blocks, taskID) {
			other.Blocks = removeStr(other.Blocks, taskID)
			changed = true
		}
		if changed {
			pendingWrites[path] = other
		}
	}
}

func writeTaskUpdates(path string, task Task, status *Status, pendingWrites map[string]Task) error {
	if status != nil && *status == StatusDeleted {
		if err := flushPendingWrites(pendingWrites); err != nil {
			return err
		}
		return os.Remove(path)
	}
	if err := writeTask(path, task); err != nil {
		return err
	}
	return flushPendingWrites(pendingWrites)
}

func flushPendingWrites(pendingWrites map[string]Task) error {
	for path, task := range pendingWrites {
		if err := writeTask(path, task); err != nil {
			return err
		}
	}
	return nil
}

func readTask(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

func writeTask(path string, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(path, data, 0o644)
}
