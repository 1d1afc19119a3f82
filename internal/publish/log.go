// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// logTimeFormat matches the timestamps the archive generator parses.
const logTimeFormat = "2006-01-02 15:04:05"

// PostRecord is one post in a PostLog.
type PostRecord struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PostLog is the JSON record written per candidate after summarizing. The
// archive site renders its pages from these files.
type PostLog struct {
	Title     string       `json:"title"`
	Timestamp string       `json:"timestamp"`
	Summary   string       `json:"summary"`
	PostText  string       `json:"post_text"`
	ArxivID   string       `json:"arxiv_id"`
	SearchSet string       `json:"search_set,omitempty"`
	Authors   []string     `json:"authors,omitempty"`
	Published string       `json:"published,omitempty"`
	Tweets    []PostRecord `json:"tweets"`
	Error     string       `json:"error,omitempty"`
}

// NewPostLog fills the timestamp from now in local time.
func NewPostLog(now time.Time) PostLog {
	return PostLog{Timestamp: now.Format(logTimeFormat), Tweets: []PostRecord{}}
}

// LogPath returns the post log location for id under dir.
func LogPath(dir, id string) string {
	return filepath.Join(dir, strings.ReplaceAll(id, "/", "_")+"_post_log.json")
}

// WriteLog writes l to dir atomically and returns the file path.
func WriteLog(dir string, l PostLog) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling post log: %w", err)
	}
	path := LogPath(dir, l.ArxivID)

	tmp, err := os.CreateTemp(dir, ".postlog-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(append(data, '\n'))
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing post log: %v", firstErr(werr, cerr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming post log: %w", err)
	}
	return path, nil
}

// ReadLog reads the post log for id from dir.
func ReadLog(dir, id string) (*PostLog, error) {
	data, err := os.ReadFile(LogPath(dir, id))
	if err != nil {
		return nil, err
	}
	var l PostLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing post log %s: %w", id, err)
	}
	return &l, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
