package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Recorder writes every message and rendered frame of the inbox to a
// directory for debugging.
type Recorder struct {
	logFile  *os.File
	frameDir string
	frameNum int
}

// NewRecorder creates a recorder writing into a fresh subdirectory of dir.
func NewRecorder(dir string) (*Recorder, error) {
	recordDir := filepath.Join(dir, fmt.Sprintf("inbox-record-%d", time.Now().Unix()))
	if err := os.MkdirAll(recordDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	logPath := filepath.Join(recordDir, "inbox.log")
	logFile, err := os.Create(filepath.Clean(logPath)) // #nosec G304 -- safe constructed path
	if err != nil {
		return nil, fmt.Errorf("failed to create record log: %w", err)
	}

	r := &Recorder{
		logFile:  logFile,
		frameDir: recordDir,
	}
	r.Log("inbox recording in %s", recordDir)
	return r, nil
}

// Dir returns the directory frames are written to.
func (r *Recorder) Dir() string {
	return r.frameDir
}

// RecordState captures the state after msg was handled.
func (r *Recorder) RecordState(m Model, msg tea.Msg) {
	r.frameNum++

	r.Log("\n=== Frame %d %s ===", r.frameNum, time.Now().Format("15:04:05.000"))
	r.Log("msg=%T state=%v pending=%d cursor=%d resolved=%d dismissed=%d",
		msg, m.state, len(m.items), m.cursor, m.stats.Resolved, m.stats.Dismissed)
	if item, ok := m.current(); ok {
		r.Log("current=%s channel=%s", item.ID, item.Channel)
	}
	if m.state == StateForm {
		r.Log("form item=%s focus=%d submitting=%t err=%q", m.form.item.ID, m.form.focus, m.form.submitting, m.form.err)
	}
	if m.status != "" {
		r.Log("status=%s", m.status)
	}

	view := m.View()
	framePath := filepath.Join(r.frameDir, fmt.Sprintf("frame-%04d.txt", r.frameNum))
	if err := os.WriteFile(framePath, []byte(view), 0600); err != nil {
		r.Log("failed to save frame: %v", err)
	}
}

// Log writes to the log file.
func (r *Recorder) Log(format string, args ...any) {
	if r.logFile == nil {
		return
	}
	if _, err := fmt.Fprintf(r.logFile, format+"\n", args...); err != nil {
		return
	}
	_ = r.logFile.Sync()
}

// Close closes the recorder.
func (r *Recorder) Close() {
	if r.logFile != nil {
		r.Log("recorded %d frames", r.frameNum)
		_ = r.logFile.Close()
		r.logFile = nil
	}
}
