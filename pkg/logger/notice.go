// pkg/logger/notice.go
//
// Operator notices. An entry whose message starts with NoticePrefix is not
// a log record: it is text for the person at the console (boot failures,
// dependency summaries, login hints) and is printed verbatim to the notice
// writer instead of being encoded. Notices never reach the log file.

package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NoticePrefix marks an entry as an operator notice.
const NoticePrefix = "terminal prompt:"

// noticeWriter serializes whole notices so concurrent callers never
// interleave lines.
type noticeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *noticeWriter) print(lines []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = io.WriteString(n.w, strings.Join(lines, "\n")+"\n")
}

type noticeCore struct {
	next zapcore.Core
	out  *noticeWriter
}

func newNoticeCore(next zapcore.Core, w io.Writer) zapcore.Core {
	if w == nil {
		w = os.Stdout
	}
	return &noticeCore{next: next, out: &noticeWriter{w: w}}
}

// WithNotices returns l with notices printed to w. Everything else still
// goes to l's cores.
func WithNotices(l *zap.Logger, w io.Writer) *zap.Logger {
	return l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return newNoticeCore(c, w)
	}))
}

// IsNotice reports whether msg is an operator notice.
func IsNotice(msg string) bool { return strings.HasPrefix(msg, NoticePrefix) }

// Enabled lets notices through even when the wrapped core is silenced.
func (c *noticeCore) Enabled(level zapcore.Level) bool {
	return level >= zapcore.InfoLevel || c.next.Enabled(level)
}

// With passes context fields to the wrapped core only; they describe the
// caller, not the notice.
func (c *noticeCore) With(fields []zapcore.Field) zapcore.Core {
	return &noticeCore{next: c.next.With(fields), out: c.out}
}

func (c *noticeCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if IsNotice(entry.Message) && entry.Level >= zapcore.InfoLevel {
		return ce.AddCore(entry, c)
	}
	return c.next.Check(entry, ce)
}

func (c *noticeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if !IsNotice(entry.Message) {
		return c.next.Write(entry, fields)
	}
	c.out.print(renderNotice(entry.Message, fields))
	return nil
}

func (c *noticeCore) Sync() error { return c.next.Sync() }

// renderNotice turns a notice into printable lines. The "output" field is
// printed raw, typically captured command output; other fields follow as
// sorted "key: value" lines.
func renderNotice(msg string, fields []zapcore.Field) []string {
	var lines []string
	if text := strings.TrimSpace(strings.TrimPrefix(msg, NoticePrefix)); text != "" {
		lines = append(lines, strings.Split(text, "\n")...)
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	if raw, ok := enc.Fields["output"]; ok {
		delete(enc.Fields, "output")
		lines = append(lines, strings.Split(fmt.Sprint(raw), "\n")...)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, enc.Fields[k]))
	}

	if len(lines) == 0 {
		// a bare prefix prints a blank line
		lines = []string{""}
	}
	return lines
}
