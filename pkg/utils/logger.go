package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level         string `json:"level" yaml:"level"`
	Format        string `json:"format" yaml:"format"`
	FileLocation  string `json:"file_location" yaml:"file_location"`
	MaxSize       int    `json:"max_size" yaml:"max_size"`
	MaxBackups    int    `json:"max_backups" yaml:"max_backups"`
	MaxAge        int    `json:"max_age" yaml:"max_age"`
	Compress      bool   `json:"compress" yaml:"compress"`
	EnableConsole bool   `json:"enable_console" yaml:"enable_console"`
}

type Logger struct {
	*logrus.Logger
	config   LogConfig
	fileSink io.WriteCloser
}

// NewLogger builds the structured logger every subsystem shares: JSON by
// default, rotated file sink via lumberjack, and service/hostname fields on
// every entry. Findings and identifiers never go through here unredacted;
// see RedactSecrets.
func NewLogger(config LogConfig, service, version string) (*Logger, error) {
	l := &Logger{
		Logger: logrus.New(),
		config: normalizeLogConfig(config),
	}

	level, err := logrus.ParseLevel(l.config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch l.config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}

	var writers []io.Writer
	if l.config.FileLocation != "" {
		if err := os.MkdirAll(filepath.Dir(l.config.FileLocation), 0o755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   l.config.FileLocation,
			MaxSize:    maxInt(1, l.config.MaxSize),
			MaxBackups: maxInt(0, l.config.MaxBackups),
			MaxAge:     maxInt(0, l.config.MaxAge),
			Compress:   l.config.Compress,
		}
		l.fileSink = lj
		writers = append(writers, lj)
	}
	if l.config.EnableConsole || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))

	l.AddHook(&serviceHook{service: service, version: version, hostname: hostname()})
	return l, nil
}

func normalizeLogConfig(c LogConfig) LogConfig {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = "json"
	}
	return c
}

func (l *Logger) Rotate() error {
	if lj, ok := l.fileSink.(*lumberjack.Logger); ok {
		return lj.Rotate()
	}
	return nil
}

func (l *Logger) Close() error {
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}

func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

func (l *Logger) WithProfile(profileID string) *logrus.Entry {
	return l.WithField("profile_id", profileID)
}

func (l *Logger) WithScan(scanID string) *logrus.Entry {
	return l.WithField("scan_id", scanID)
}

type serviceHook struct {
	service  string
	version  string
	hostname string
}

func (h *serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.service
	entry.Data["version"] = h.version
	entry.Data["hostname"] = h.hostname
	return nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
