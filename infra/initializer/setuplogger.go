package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
	keyColor   = lipgloss.AdaptiveColor{Light: "#3C78D8", Dark: "#6FA8DC"}
)

// SetupLogger builds the process logger from cfg, installs it as the slog
// default and returns it.
func SetupLogger(cfg *config.Log) *slog.Logger {
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text", TimeFormat: "2006-01-02 15:04:05"}
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(logStyles())

	return slog.New(logger)
}

func levelStyle(icon string, color lipgloss.AdaptiveColor) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(icon).
		Bold(true).
		Padding(0, 1).
		Foreground(color)
}

func logStyles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Levels[log.ErrorLevel] = levelStyle("❌", errorColor)
	styles.Levels[log.WarnLevel] = levelStyle("⚠️", warnColor)
	styles.Levels[log.InfoLevel] = levelStyle("ℹ️", infoColor)
	styles.Levels[log.DebugLevel] = levelStyle("🐛", debugColor)

	bold := lipgloss.NewStyle().Bold(true)
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	styles.Values["error"] = bold
	for _, key := range []string{"base", "date", "provider", "session_id"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(keyColor)
		styles.Values[key] = bold
	}
	styles.Keys["prefix"] = lipgloss.NewStyle().Foreground(debugColor)
	styles.Values["prefix"] = bold
	return styles
}
