package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so packages can log from tests without setup.
var Log = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init applies LOG_LEVEL and tags every entry with the service name.
func Init(service string) {
	Log = newLogger(os.Stdout)

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)

	if service != "" {
		Log.AddHook(serviceHook{service: service})
	}
}

// SetOutput redirects the global logger, mainly for tests.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Redactor masks personal data in log output.
type Redactor interface {
	Redact(text string) string
}

// UseRedactor masks the message and every string or error field of each
// entry written by Log.
func UseRedactor(r Redactor) {
	if r != nil {
		Log.AddHook(redactHook{r: r})
	}
}

type redactHook struct {
	r Redactor
}

func (h redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h redactHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.r.Redact(entry.Message)
	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			entry.Data[key] = h.r.Redact(v)
		case error:
			entry.Data[key] = h.r.Redact(v.Error())
		}
	}
	return nil
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
