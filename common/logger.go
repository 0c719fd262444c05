package common

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a configuration value into a LogLevel.
// Unknown values map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

const (
	defaultMaxFileSize = 5 * 1024 * 1024 // 5MB
	defaultMaxBackups  = 5
)

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level LogLevel
	// EnableFile writes the log to LogFileName in Dir.
	EnableFile bool
	// Dir overrides the default log directory when set.
	Dir string
	// QuietConsole stops console output. The interactive menu owns the
	// terminal, so it logs to the file only.
	QuietConsole bool
	MaxFileSize  int64 // in bytes, default 5MB
	MaxBackups   int   // number of rotated files to keep, default 5
}

// AppLogger is a leveled logger writing to the console (stderr) and,
// optionally, to a size-rotated file.
type AppLogger struct {
	mu      sync.Mutex
	level   LogLevel
	console io.Writer
	file    *rotatingFile
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = NewLogger(LevelInfo, os.Stderr)
	})
	return defaultLogger
}

// NewLogger returns a logger writing to console; a nil console discards
// console output.
func NewLogger(level LogLevel, console io.Writer) *AppLogger {
	return &AppLogger{level: level, console: console}
}

// InitLogger configures the default logger.
// Should be called early in application startup.
func InitLogger(config LogConfig) error {
	logger := GetLogger()
	logger.SetLevel(config.Level)
	if config.QuietConsole {
		logger.SetOutput(nil)
	}

	if !config.EnableFile {
		return nil
	}

	dir := config.Dir
	if dir == "" {
		dir = GetLogDir()
		if dir == "" {
			return errors.New("could not resolve log directory")
		}
	}
	return logger.EnableFileLogging(dir, config.MaxFileSize, config.MaxBackups)
}

// SetLevel sets the minimum log level.
func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum log level.
func (l *AppLogger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the console destination; nil disables console output.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// EnableFileLogging additionally writes the log to LogFileName in logDir,
// rotating it once it grows beyond maxSize bytes. Zero values select the
// defaults.
func (l *AppLogger) EnableFileLogging(logDir string, maxSize int64, maxBackups int) error {
	f, err := openRotatingFile(filepath.Join(logDir, LogFileName), maxSize, maxBackups)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	return nil
}

// FilePath returns the path of the log file, or "" without file logging.
func (l *AppLogger) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.path
}

// GetLogDir returns the log directory path.
func GetLogDir() string {
	dir, err := GetDataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "logs")
}

// log writes a formatted log message.
func (l *AppLogger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	minLevel := l.level
	l.mu.Unlock()
	if level < minLevel {
		return
	}

	// runtime.Caller reports forward-slash paths on every platform.
	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", path.Base(file), line)
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	logLine := fmt.Sprintf("%s [%s] %s: %s\n",
		time.Now().Format("2006/01/02 15:04:05"), level, caller, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.console != nil {
		io.WriteString(l.console, logLine)
	}
	if l.file != nil {
		if _, err := io.WriteString(l.file, logLine); err != nil && l.console != nil {
			fmt.Fprintf(l.console, "log file: %v\n", err)
		}
	}
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *AppLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *AppLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

var _ Logger = (*AppLogger)(nil)

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().Debug(msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().Info(msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().Warn(msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().Error(msg, args...)
}

// Close closes the log file. Should be called on application shutdown.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// CloseLogger closes the default logger.
func CloseLogger() error {
	return GetLogger().Close()
}

// rotatingFile is an append-only log file that is gzipped and replaced
// once a write would take it past maxSize.
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int
	f          *os.File
	size       int64
}

func openRotatingFile(logPath string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	dir := filepath.Dir(logPath)
	if isSymlink(dir) {
		return nil, fmt.Errorf("refusing to log into %s: directory is a symlink", dir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	if isSymlink(logPath) {
		return nil, fmt.Errorf("refusing to log into %s: file is a symlink", logPath)
	}

	r := &rotatingFile{path: logPath, maxSize: maxSize, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	if r.size >= r.maxSize {
		if err := r.rotate(); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate compresses the current file into a timestamped backup, prunes
// old backups and starts an empty file.
func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	r.f = nil

	backup := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102-150405.000"))
	if err := compressFile(r.path, backup+".gz"); err != nil {
		os.Remove(backup + ".gz")
		if err := os.Rename(r.path, backup); err != nil {
			return err
		}
	} else {
		os.Remove(r.path)
	}

	r.pruneBackups()
	return r.open()
}

func (r *rotatingFile) pruneBackups() {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= r.maxBackups {
		return
	}
	// Backup names embed a sortable timestamp; oldest first.
	sort.Strings(matches)
	for _, m := range matches[:len(matches)-r.maxBackups] {
		os.Remove(m)
	}
}

func (r *rotatingFile) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// compressFile compresses a file using gzip.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// isSymlink reports whether path is a symbolic link. A missing path is not.
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
