// Package transcript reads agent session transcripts from disk. The
// layout is <root>/<project>/<sessionID>.jsonl, one JSON event per line,
// written by the agent CLI as the session progresses.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"steward/internal/domain"
)

// ErrNotFound indicates no transcript exists for the session.
var ErrNotFound = errors.New("transcript not found")

// maxLineSize bounds a single transcript line (1 MiB).
const maxLineSize = 1024 * 1024

// titleLimit caps the summary title length.
const titleLimit = 80

// Store reads transcripts under a root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// transcriptLine is the subset of a transcript entry the store inspects.
type transcriptLine struct {
	Type    string `json:"type"`
	Cwd     string `json:"cwd"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// Summary locates the transcript for sessionID and derives its summary:
// project from the containing directory, title from the first user
// prompt, creation time from the file. Returns ErrNotFound when the
// transcript has not been written yet.
func (s *Store) Summary(sessionID string) (domain.SessionSummary, error) {
	path, project, err := s.find(sessionID)
	if err != nil {
		return domain.SessionSummary{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.SessionSummary{}, ErrNotFound
	}

	sum := domain.SessionSummary{
		ID:        sessionID,
		Project:   project,
		CreatedAt: info.ModTime(),
	}

	f, err := os.Open(path)
	if err != nil {
		return sum, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Cwd != "" && sum.Workdir == "" {
			sum.Workdir = line.Cwd
		}
		if line.Type == "user" || line.Message.Role == "user" {
			sum.Title = firstText(line.Message.Content)
			if sum.Title != "" {
				break
			}
		}
	}

	return sum, nil
}

// List returns summaries for every transcript in a project, newest
// first.
func (s *Store) List(project string) ([]domain.SessionSummary, error) {
	dir := filepath.Join(s.root, project)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sums []domain.SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".jsonl")
		sum, err := s.Summary(id)
		if err != nil {
			continue
		}
		sums = append(sums, sum)
	}

	sort.Slice(sums, func(i, j int) bool {
		return sums[i].CreatedAt.After(sums[j].CreatedAt)
	})
	return sums, nil
}

// Projects lists the project directories under the root.
func (s *Store) Projects() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// Messages returns the raw transcript lines for a session, up to limit
// (0 for all).
func (s *Store) Messages(sessionID string, limit int) ([]json.RawMessage, error) {
	path, _, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNotFound
	}
	defer f.Close()

	var msgs []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(scanner.Bytes()))
		copy(raw, scanner.Bytes())
		msgs = append(msgs, raw)
		if limit > 0 && len(msgs) >= limit {
			break
		}
	}
	return msgs, scanner.Err()
}

// find locates the transcript file for a session across all projects.
func (s *Store) find(sessionID string) (path, project string, err error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", "", ErrNotFound
	}

	name := sessionID + ".jsonl"
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(s.root, entry.Name(), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, entry.Name(), nil
		}
	}
	return "", "", ErrNotFound
}

// firstText extracts a displayable title from message content, which is
// either a plain string or a list of content blocks.
func firstText(content json.RawMessage) string {
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return truncate(text)
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err == nil {
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				return truncate(b.Text)
			}
		}
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) > titleLimit {
		return s[:titleLimit]
	}
	return s
}
