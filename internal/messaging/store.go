package messaging

import (
	"encoding/json"
	"os"

	"github.com/relayfleet/relayfleet/internal/lockfile"
	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/paths"
)

// Store implements the inbox operations described in the messaging
// core: ensure/append/read/read-filtered/mark-first-n-unread. Append,
// marking reads, and MarkFirstNUnread are serialized through the
// team's inbox lock so a concurrent append and a mark-read transaction
// can never interleave; Ensure and reads that do not mark take no lock.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Ensure creates the inbox file with an empty sequence if absent.
// Idempotent.
func (s *Store) Ensure(team, agent string) (string, error) {
	path := paths.InboxPath(s.Root, team, agent)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := paths.WriteFileAtomic(path, []byte("[]"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Append adds message to the end of the agent's inbox, preserving
// insertion order, under the team's inbox lock.
func (s *Store) Append(team, agent string, message Message) error {
	if _, err := s.Ensure(team, agent); err != nil {
		return err
	}
	lk, err := lockfile.Acquire(paths.InboxLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	path := paths.InboxPath(s.Root, team, agent)
	msgs, err := readMessages(path)
	if err != nil {
		return err
	}
	msgs = append(msgs, message)
	if err := writeMessages(path, msgs); err != nil {
		return err
	}
	log.Debug(log.CatInbox, "appended message", "team", team, "agent", agent, "from", message.From)
	return nil
}

// Read returns messages from the agent's inbox in stored order,
// optionally restricted to unread messages, optionally marking
// exactly the returned messages as read in the same locked
// transaction as the read.
func (s *Store) Read(team, agent string, unreadOnly, markRead bool) ([]Message, error) {
	return s.ReadFiltered(team, agent, "", unreadOnly, markRead, 0)
}

// ReadFiltered is Read restricted to messages whose From matches
// sender (sender == "" matches every message). When limit > 0, the
// newest limit matching messages are returned in chronological order;
// when markRead, exactly those returned messages are flipped to read.
func (s *Store) ReadFiltered(team, agent, sender string, unreadOnly, markRead bool, limit int) ([]Message, error) {
	path := paths.InboxPath(s.Root, team, agent)

	if !markRead {
		all, err := readMessagesOrEmpty(path)
		if err != nil {
			return nil, err
		}
		return filterMessages(all, sender, unreadOnly, limit), nil
	}

	lk, err := lockfile.Acquire(paths.InboxLockPath(s.Root, team))
	if err != nil {
		return nil, err
	}
	defer func() { _ = lk.Close() }()

	all, err := readMessagesOrEmpty(path)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []Message{}, nil
	}

	idx := matchingIndices(all, sender, unreadOnly, limit)
	if len(idx) == 0 {
		return []Message{}, nil
	}

	result := make([]Message, len(idx))
	changed := false
	for i, pos := range idx {
		result[i] = all[pos]
		if !all[pos].Read {
			all[pos].Read = true
			changed = true
		}
	}
	if changed {
		if err := writeMessages(path, all); err != nil {
			return nil, err
		}
		log.Debug(log.CatInbox, "marked messages read", "team", team, "agent", agent, "count", len(result))
	}
	return result, nil
}

// MarkFirstNUnread flips the first n still-unread messages to read,
// under the inbox lock. A no-op for n<=0 or a missing inbox.
func (s *Store) MarkFirstNUnread(team, agent string, n int) error {
	if n <= 0 {
		return nil
	}
	path := paths.InboxPath(s.Root, team, agent)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}

	lk, err := lockfile.Acquire(paths.InboxLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	all, err := readMessagesOrEmpty(path)
	if err != nil {
		return err
	}
	marked := 0
	for i := range all {
		if marked >= n {
			break
		}
		if !all[i].Read {
			all[i].Read = true
			marked++
		}
	}
	if marked == 0 {
		return nil
	}
	return writeMessages(path, all)
}

// filterMessages applies the sender/unreadOnly/limit selection,
// returning the result in chronological (stored) order.
func filterMessages(all []Message, sender string, unreadOnly bool, limit int) []Message {
	idx := matchingIndices(all, sender, unreadOnly, limit)
	result := make([]Message, len(idx))
	for i, pos := range idx {
		result[i] = all[pos]
	}
	return result
}

// matchingIndices returns the positions within all selected by
// sender/unreadOnly, limited to the newest `limit` matches (0 = no
// limit), always returned in ascending (chronological) order. Indices
// are used rather than message identity/content so that two
// otherwise-identical messages (e.g. a benign at-least-once retry) are
// never conflated when marking read.
func matchingIndices(all []Message, sender string, unreadOnly bool, limit int) []int {
	matching := make([]int, 0, len(all))
	for i, m := range all {
		if sender != "" && m.From != sender {
			continue
		}
		if unreadOnly && m.Read {
			continue
		}
		matching = append(matching, i)
	}
	if limit > 0 && len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching
}

func readMessages(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func readMessagesOrEmpty(path string) ([]Message, error) {
	msgs, err := readMessages(path)
	if os.IsNotExist(err) {
		return []Message{}, nil
	}
	return msgs, err
}

func writeMessages(path string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(path, data, 0o644)
}
