package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crytic/stencil/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger describes a Logger that is disabled by default and is configured by the CLI. Each package creates
// its own sub-logger from it.
var GlobalLogger *Logger

// Logger describes a custom logging object that can log events to any arbitrary channel in structured, unstructured,
// or unstructured and colorized format.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// context holds the key-value pairs added by NewSubLogger, in order.
	context [][2]string

	// structuredLogger logs to structuredWriters in JSON.
	structuredLogger zerolog.Logger

	// structuredWriters describes the writers which receive structured output.
	structuredWriters []io.Writer

	// unstructuredLogger logs to unstructuredWriters without colors.
	unstructuredLogger zerolog.Logger

	// unstructuredWriters describes the writers which receive unstructured output without colors.
	unstructuredWriters []io.Writer

	// unstructuredColorLogger logs to unstructuredColorWriters with colors.
	unstructuredColorLogger zerolog.Logger

	// unstructuredColorWriters describes the writers which receive unstructured, colorized output.
	unstructuredColorWriters []io.Writer
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// NewLogger creates a new Logger with a specific log level and no writers.
func NewLogger(level zerolog.Level) *Logger {
	l := &Logger{
		level:                    level,
		structuredWriters:        make([]io.Writer, 0),
		unstructuredWriters:      make([]io.Writer, 0),
		unstructuredColorWriters: make([]io.Writer, 0),
	}
	l.rebuild()
	return l
}

// NewSubLogger creates a new Logger with unique context in the form of a key-value pair, sharing the writers of its
// parent at the time of the call.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	sub := &Logger{
		level:                    l.level,
		context:                  append(append([][2]string{}, l.context...), [2]string{key, value}),
		structuredWriters:        append([]io.Writer{}, l.structuredWriters...),
		unstructuredWriters:      append([]io.Writer{}, l.unstructuredWriters...),
		unstructuredColorWriters: append([]io.Writer{}, l.unstructuredColorWriters...),
	}
	sub.rebuild()
	return sub
}

// writerList returns the list of writers for a format and color option.
func (l *Logger) writerList(format LogFormat, colored bool) *[]io.Writer {
	if format == STRUCTURED {
		return &l.structuredWriters
	}
	if colored {
		return &l.unstructuredColorWriters
	}
	return &l.unstructuredWriters
}

// AddWriter adds a writer to the list of channels where log output is sent. The colored option only applies to
// unstructured output. Adding a writer which is already registered for the format is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerList(format, colored)
	for _, w := range *writers {
		if w == writer {
			return
		}
	}
	*writers = append(*writers, writer)
	l.rebuild()
}

// RemoveWriter removes a writer from the list it was added to. If the writer does not exist, this is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerList(format, colored)
	for i, w := range *writers {
		if w == writer {
			*writers = append((*writers)[:i], (*writers)[i+1:]...)
			l.rebuild()
			return
		}
	}
}

// rebuild recreates the underlying zerolog loggers from the current writers, level and context.
func (l *Logger) rebuild() {
	l.structuredLogger = l.newZerologger(l.structuredWriters, func(w io.Writer) io.Writer { return w }, true)
	l.unstructuredLogger = l.newZerologger(l.unstructuredWriters, func(w io.Writer) io.Writer {
		return setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: true}, l.level, false)
	}, false)
	// Colors come from the colors package, which checks on every call whether coloring is enabled.
	l.unstructuredColorLogger = l.newZerologger(l.unstructuredColorWriters, func(w io.Writer) io.Writer {
		return setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: true}, l.level, true)
	}, false)
}

// newZerologger creates a zerolog.Logger writing to every writer wrapped by wrap. A logger without writers is
// disabled.
func (l *Logger) newZerologger(writers []io.Writer, wrap func(io.Writer) io.Writer, timestamp bool) zerolog.Logger {
	if len(writers) == 0 {
		return zerolog.New(io.Discard).Level(zerolog.Disabled)
	}

	wrapped := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		wrapped = append(wrapped, wrap(w))
	}
	ctx := zerolog.New(zerolog.MultiLevelWriter(wrapped...)).Level(l.level).With()
	if timestamp {
		ctx = ctx.Timestamp()
	}
	for _, kv := range l.context {
		ctx = ctx.Str(kv[0], kv[1])
	}
	return ctx.Logger()
}

// Level returns the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel updates the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.rebuild()
}

// Trace logs a trace event
func (l *Logger) Trace(args ...any) {
	l.log(zerolog.TraceLevel, args...)
}

// Debug logs a debug event
func (l *Logger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, args...)
}

// Info logs an info event
func (l *Logger) Info(args ...any) {
	l.log(zerolog.InfoLevel, args...)
}

// Warn logs a warning event
func (l *Logger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, args...)
}

// Error logs an error event
func (l *Logger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, args...)
}

// Panic logs a panic event to every channel, then panics.
func (l *Logger) Panic(args ...any) {
	l.log(zerolog.PanicLevel, args...)
}

// log sends an event at the provided level to every channel.
func (l *Logger) log(level zerolog.Level, args ...any) {
	colorMsg, plainMsg, err, info := buildMsgs(args...)
	withStack := l.level <= zerolog.DebugLevel || level == zerolog.PanicLevel

	events := []struct {
		event *zerolog.Event
		msg   string
	}{
		{l.structuredLogger.WithLevel(level), plainMsg},
		{l.unstructuredLogger.WithLevel(level), plainMsg},
		{l.unstructuredColorLogger.WithLevel(level), colorMsg},
	}
	for _, e := range events {
		// A disabled logger returns a nil event, which zerolog methods accept.
		e.event.Err(err)
		if withStack {
			e.event.Stack()
		}
		if info != nil {
			e.event.Any("info", info)
		}
		e.event.Msg(e.msg)
	}

	if level == zerolog.PanicLevel {
		panic(plainMsg)
	}
}

// buildMsgs takes a variadic list of arguments of any type and returns a colorized message for colored console
// output, a plain message for every other channel and, optionally, an error and a StructuredLogInfo. Color functions
// switch the color of the arguments that follow them.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	colorOutput := make([]string, 0)
	plainOutput := make([]string, 0)
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info is kept per message.
			info = t
		case error:
			// Only one error is kept per message.
			err = t
		case *LogBuffer:
			c, p, _, _ := buildMsgs(t.Args()...)
			colorOutput = append(colorOutput, c)
			plainOutput = append(plainOutput, p)
		default:
			colorOutput = append(colorOutput, colorCtx(t))
			plainOutput = append(plainOutput, fmt.Sprintf("%v", t))
		}
	}
	return strings.Join(colorOutput, ""), strings.Join(plainOutput, ""), err, info
}

// setupDefaultFormatting updates a console writer's formatting to the stencil standard: no timestamps, glyph or
// level names colored when colored is set, and no module field above debug level.
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level, colored bool) zerolog.ConsoleWriter {
	writer.FormatTimestamp = func(i any) string {
		return ""
	}

	writer.FormatLevel = func(i any) string {
		levelText, _ := i.(string)
		parsed, err := zerolog.ParseLevel(levelText)
		if err != nil {
			return levelText
		}

		color := colors.Reset
		text := levelText
		switch parsed {
		case zerolog.TraceLevel:
			color = colors.CyanBold
		case zerolog.DebugLevel:
			color = colors.BlueBold
		case zerolog.InfoLevel:
			color, text = colors.GreenBold, colors.LEFT_ARROW
		case zerolog.WarnLevel:
			color = colors.YellowBold
		case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
			color = colors.RedBold
		}
		if !colored {
			return text
		}
		return color(text)
	}

	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}
	return writer
}

// NewConsoleLogger returns a Logger writing unstructured, colored output to stdout at the provided level.
func NewConsoleLogger(level zerolog.Level) *Logger {
	l := NewLogger(level)
	l.AddWriter(os.Stdout, UNSTRUCTURED, true)
	return l
}
