// Package report renders the daily summary as Markdown or JSON and reads
// rendered reports back.
package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/pomosync/internal/state"
	"github.com/fakeyudi/pomosync/internal/stats"
)

// Report is the complete, renderable daily report.
type Report struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Author      string        `json:"author,omitempty"`
	Device      string        `json:"device,omitempty"`
	Summary     stats.Summary `json:"summary"`
	Tasks       []state.Task  `json:"tasks"`
}

// Build assembles the report for the day containing now.
func Build(snap state.Snapshot, now time.Time) *Report {
	tasks := snap.Clone().Tasks
	return &Report{
		GeneratedAt: now,
		Summary:     stats.Today(snap, now),
		Tasks:       tasks,
	}
}

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// NewRenderer returns the renderer for format ("markdown" or "json").
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want markdown or json)", format)
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(rep *Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}

const (
	versionSentinel = "<!-- pomosync-report-version: 1 -->"
	dataPrefix      = "<!-- pomosync-data: "
	dataSuffix      = " -->"
)

// MarkdownRenderer renders a Report as readable Markdown with an embedded
// base64 JSON payload so the file can be parsed back losslessly.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(rep *Report) ([]byte, error) {
	jsonBytes, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	s := rep.Summary
	fmt.Fprintf(&sb, "# Pomodoro report: %s\n\n", s.Date)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Pomodoros today: %d / %d\n", s.Pomodoros, s.DailyGoal)
	fmt.Fprintf(&sb, "- Focus time: %s\n", minutes(s.FocusMinutes))
	fmt.Fprintf(&sb, "- Break time: %s\n", minutes(s.BreakMinutes))
	fmt.Fprintf(&sb, "- Total pomodoros: %d\n", s.TotalPomodoros)
	fmt.Fprintf(&sb, "- Streak: %d day(s)\n", s.Streak)
	fmt.Fprintf(&sb, "- Tasks: %d done, %d open\n", s.CompletedTasks, s.OpenTasks)
	if s.CurrentTask != "" {
		fmt.Fprintf(&sb, "- Current task: %s\n", s.CurrentTask)
	}
	if rep.Author != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", rep.Author)
	}
	sb.WriteString("\n")

	sb.WriteString("## Sessions\n\n")
	if len(s.Sessions) == 0 {
		sb.WriteString("_No sessions recorded today._\n")
	} else {
		sb.WriteString("| Time | Phase | Minutes | Task |\n")
		sb.WriteString("|------|-------|---------|------|\n")
		for _, sess := range s.Sessions {
			fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n",
				time.UnixMilli(sess.Timestamp).In(rep.GeneratedAt.Location()).Format("15:04"),
				phaseName(sess.Mode),
				sess.DurationMinutes,
				sess.TaskName,
			)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Tasks\n\n")
	if len(rep.Tasks) == 0 {
		sb.WriteString("_No tasks._\n")
	} else {
		for _, t := range rep.Tasks {
			box := " "
			if t.Done {
				box = "x"
			}
			progress := fmt.Sprintf("%d", t.CompletedPomodoros)
			if t.EstimatedPomodoros != nil {
				progress += fmt.Sprintf("/%d", *t.EstimatedPomodoros)
			}
			fmt.Fprintf(&sb, "- [%s] %s (%s)", box, t.Name, progress)
			if len(t.Tags) > 0 {
				fmt.Fprintf(&sb, " #%s", strings.Join(t.Tags, " #"))
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

func minutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

func phaseName(m state.Mode) string {
	switch m {
	case state.ModeShortBreak:
		return "short break"
	case state.ModeLongBreak:
		return "long break"
	}
	return "work"
}

// Parse reads a rendered report. JSON is detected by a leading '{';
// anything else must be a Markdown report carrying the embedded payload.
func Parse(data []byte) (*Report, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var rep Report
		if err := json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("failed to parse JSON report: %w", err)
		}
		return &rep, nil
	}

	if !strings.Contains(trimmed, versionSentinel) {
		return nil, fmt.Errorf("not a valid pomosync report: missing version sentinel")
	}
	start := strings.Index(trimmed, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid pomosync report: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(trimmed[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid pomosync report: malformed data payload")
	}
	jsonBytes, err := base64.StdEncoding.DecodeString(trimmed[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid pomosync report: corrupted payload: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(jsonBytes, &rep); err != nil {
		return nil, fmt.Errorf("not a valid pomosync report: embedded JSON: %w", err)
	}
	return &rep, nil
}
