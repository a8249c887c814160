package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"sentinel/internal/config"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing to the console and to per-level files in the configured log directory.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	if err := logger.setupLoggers(); err != nil {
		return nil, err
	}
	return logger, nil
}

// NewConsoleLogger creates a Logger that writes every level to w and keeps no log files.
func NewConsoleLogger(w io.Writer) *Logger {
	return &Logger{
		infoLog:    log.New(w, "INFO    ", log.Ldate|log.Ltime),
		warningLog: log.New(w, "WARNING ", log.Ldate|log.Ltime),
		errorLog:   log.New(w, "ERROR   ", log.Ldate|log.Ltime),
	}
}

// setupLoggers initializes writers and per-level loggers. Files already opened
// are closed if a later one fails.
func (l *Logger) setupLoggers() error {
	names := []string{"info.log", "warning.log", "error.log"}
	files := make([]*os.File, 0, len(names))
	for _, name := range names {
		file, err := l.openLogFile(filepath.Join(l.logDir, name))
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return err
		}
		files = append(files, file)
	}

	infoWriter := io.MultiWriter(os.Stdout, files[0])
	warningWriter := io.MultiWriter(os.Stdout, files[1])
	errorWriter := io.MultiWriter(os.Stderr, files[2])

	l.infoLog = log.New(infoWriter, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
	return nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// LogDir returns the directory holding the log files, empty for console loggers.
func (l *Logger) LogDir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}

	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}
