package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"sentinel/internal/dashboard"
	"sentinel/internal/model"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	orange  = color.New(color.FgRed).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
)

func severityColor(severity string) string {
	s := model.ClassifySeverity(severity)
	label := strings.ToUpper(string(s))
	switch s {
	case model.SeverityCritical:
		return red(label)
	case model.SeverityHigh:
		return orange(label)
	case model.SeverityMedium:
		return yellow(label)
	case model.SeverityLow:
		return green(label)
	default:
		return faint(label)
	}
}

// renderSession writes the full dashboard.
func renderSession(w io.Writer, s *dashboard.Session) {
	renderMetrics(w, s.Metrics)
	fmt.Fprintln(w)
	renderBudget(w, s.Privacy)
	fmt.Fprintln(w)
	renderFeed(w, s.Feed)
	fmt.Fprintln(w)
	renderAIStatus(w, s.AI.Current())
}

func renderMetrics(w io.Writer, poller *dashboard.MetricsPoller) {
	fmt.Fprintln(w, bold("System metrics"))
	snapshot, loaded := poller.Snapshot()
	if !loaded {
		fmt.Fprintln(w, faint("  no data yet"))
		return
	}
	fmt.Fprintf(w, "  Devices          %d/%d online\n", snapshot.Devices.Online, snapshot.Devices.Total)
	fmt.Fprintf(w, "  Model accuracy   %.1f%%\n", snapshot.Performance.Accuracy*100)
	fmt.Fprintf(w, "  FL round         %d\n", snapshot.FL.CurrentRound)
	fmt.Fprintf(w, "  Recent anomalies %d\n", snapshot.Security.RecentAnomalies)
	fmt.Fprintf(w, "  Privacy budget   %.2f\n", snapshot.Security.PrivacyBudgetRemaining)
}

func renderBudget(w io.Writer, viewer *dashboard.PrivacyViewer) {
	fmt.Fprintln(w, bold("Privacy budget"))
	view, _ := viewer.View()

	bar := budgetBar(view.Percent, 30)
	fmt.Fprintf(w, "  %s %.1f / %.1f (%.0f%%)\n", bar, view.Remaining, view.Ceiling, view.Percent)
	fmt.Fprintf(w, "  epsilon %.3g  delta %.0e", view.Epsilon, view.Delta)
	if view.Round > 0 {
		fmt.Fprintf(w, "  round %d", view.Round)
	}
	fmt.Fprintln(w)
	if view.Placeholder {
		fmt.Fprintln(w, yellow("  placeholder values: no rounds reported yet"))
	}
}

func budgetBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)

	switch {
	case percent < 20:
		return red(bar)
	case percent < 50:
		return yellow(bar)
	default:
		return green(bar)
	}
}

func renderFeed(w io.Writer, feed *dashboard.AnomalyFeed) {
	fmt.Fprintln(w, bold("Recent anomalies"))
	visible := feed.Visible()
	if len(visible) == 0 {
		fmt.Fprintln(w, faint("  none"))
		return
	}
	for _, a := range visible {
		line := fmt.Sprintf("  %-8s %-12s %3.0f%%", severityColor(a.Severity), a.Type, a.Confidence*100)
		if a.DeviceID != "" {
			line += " " + cyan(a.DeviceID)
		}
		if !a.DetectedAt.IsZero() {
			line += " " + faint(a.DetectedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if a.Description != "" {
			line += "  " + a.Description
		}
		fmt.Fprintln(w, line)
	}
}

func renderAIStatus(w io.Writer, view dashboard.AIStatusView) {
	status := view.Status
	var state string
	switch status.Status {
	case model.AIStatusOnline:
		state = green(status.Status)
	case model.AIStatusDegraded:
		state = yellow(status.Status)
	default:
		state = red(status.Status)
	}

	fmt.Fprintf(w, "%s %s", bold("AI service"), state)
	if status.Version != "" {
		fmt.Fprintf(w, " v%s", status.Version)
	}
	fmt.Fprintf(w, "  detector:%s temporal:%s", availability(status.YoloAvailable), availability(status.TimesformerAvailable))
	if status.FusionEngine != "" {
		fmt.Fprintf(w, "  fusion:%s", status.FusionEngine)
	}
	fmt.Fprintln(w)
	if view.Err != nil {
		fmt.Fprintln(w, red("  status check failed: "+view.Err.Error()))
	}
}

func availability(ok bool) string {
	if ok {
		return green("yes")
	}
	return faint("no")
}

func renderUploadResult(w io.Writer, result dashboard.UploadResult) {
	var outcome string
	switch result.Outcome {
	case dashboard.OutcomeAnalyzed:
		outcome = green(string(result.Outcome))
	case dashboard.OutcomeTimedOut:
		outcome = yellow(string(result.Outcome))
	default:
		outcome = red(string(result.Outcome))
	}
	fmt.Fprintf(w, "%s %s", bold(result.File), outcome)
	if result.Upload != nil {
		fmt.Fprintf(w, " %s", faint(result.Upload.ID))
	}
	fmt.Fprintln(w)

	if result.Err != nil && result.Outcome != dashboard.OutcomeAnalyzed {
		fmt.Fprintf(w, "  %s\n", result.Err)
	}
	if result.Upload == nil || result.Upload.AnalysisResults == nil {
		return
	}

	res := result.Upload.AnalysisResults
	if res.IsAnomaly {
		fmt.Fprintf(w, "  anomaly %s score %.2f\n", severityColor(res.Severity), res.AnomalyScore)
	} else {
		fmt.Fprintln(w, "  "+green("no anomaly"))
	}
	for _, box := range res.BoundingBoxes {
		marker := " "
		if box.IsAnomaly {
			marker = magenta("!")
		}
		fmt.Fprintf(w, "  %s %-12s %3.0f%% [%.0f %.0f %.0f %.0f] %s\n", marker, box.ClassName, box.Confidence*100,
			box.BBox[0], box.BBox[1], box.BBox[2], box.BBox[3], faint(box.Priority))
	}
	meta := res.Metadata
	fmt.Fprintf(w, "  %s\n", faint(fmt.Sprintf("%.0f ms, %d frame(s), privacy epsilon %.3g delta %.0e",
		meta.ProcessingTimeMs, meta.FramesAnalyzed, meta.PrivacyImpact.Epsilon, meta.PrivacyImpact.Delta)))
}

// consoleNotifier prints notifications as they arrive.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *consoleNotifier) Notify(note dashboard.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var level string
	switch note.Level {
	case dashboard.LevelSuccess:
		level = green("ok")
	case dashboard.LevelWarning:
		level = yellow("warn")
	case dashboard.LevelError:
		level = red("error")
	default:
		level = cyan("info")
	}
	fmt.Fprintf(n.w, "[%s] %s: %s\n", level, bold(note.Title), note.Message)
}
