package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"yt_multi_account/config"
	"yt_multi_account/internal/domain"
)

// Options selects where log lines go.
type Options struct {
	Directory  string
	OutputFile string
	ErrorFile  string

	// Console mirrors info lines to stdout. The interactive menu turns it off
	// so log lines do not interleave with prompts; errors always reach stderr.
	Console bool
}

// OptionsFromConfig builds Options from the logging section.
func OptionsFromConfig(cfg *config.Config, console bool) Options {
	return Options{
		Directory:  cfg.LogDirectory,
		OutputFile: cfg.LogOutputFile,
		ErrorFile:  cfg.LogErrorFile,
		Console:    console,
	}
}

// Manager manages application loggers and their underlying files.
type Manager struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	infoFile    *os.File
	errorFile   *os.File
}

var global *Manager

// Initialize configures the global logger manager.
func Initialize(opts Options) (*Manager, error) {
	manager, err := New(opts)
	if err != nil {
		return nil, err
	}
	global = manager
	return manager, nil
}

// New creates a new Manager instance.
func New(opts Options) (*Manager, error) {
	dir := opts.Directory
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = "app.log"
	}
	errorFile := opts.ErrorFile
	if errorFile == "" {
		errorFile = "app.error.log"
	}

	infoHandle, err := os.OpenFile(filepath.Join(dir, outputFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open info log file: %w", err)
	}

	errorHandle, err := os.OpenFile(filepath.Join(dir, errorFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		infoHandle.Close()
		return nil, fmt.Errorf("open error log file: %w", err)
	}

	var infoWriter io.Writer = infoHandle
	if opts.Console {
		infoWriter = io.MultiWriter(os.Stdout, infoHandle)
	}
	errorWriter := io.MultiWriter(os.Stderr, errorHandle)

	return &Manager{
		infoLogger:  log.New(infoWriter, "[INFO] ", log.LstdFlags|log.Lmicroseconds),
		errorLogger: log.New(errorWriter, "[ERROR] ", log.LstdFlags|log.Lmicroseconds),
		infoFile:    infoHandle,
		errorFile:   errorHandle,
	}, nil
}

// Info returns the info logger.
func (m *Manager) Info() *log.Logger {
	return m.infoLogger
}

// Error returns the error logger.
func (m *Manager) Error() *log.Logger {
	return m.errorLogger
}

// Close releases file handles.
func (m *Manager) Close() error {
	var firstErr error
	if m.infoFile != nil {
		if err := m.infoFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.errorFile != nil {
		if err := m.errorFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases the global logger manager if initialized.
func Close() error {
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	return err
}

// Info returns the global info logger.
func Info() *log.Logger {
	if global != nil {
		return global.Info()
	}
	return log.Default()
}

// Error returns the global error logger.
func Error() *log.Logger {
	if global != nil {
		return global.Error()
	}
	return log.Default()
}

// Result logs one per-account outcome: successes to info, failures to error.
func Result(res domain.ActionResult) {
	if res.Succeeded {
		Info().Printf("account=%s action=%s target=%s outcome=%s attempts=%d %s",
			res.Account, res.Kind, res.Target, res.Outcome, res.Attempts, res.Detail)
		return
	}
	Error().Printf("account=%s action=%s target=%s outcome=%s attempts=%d %s",
		res.Account, res.Kind, res.Target, res.Outcome, res.Attempts, res.Detail)
}
