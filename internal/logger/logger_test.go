package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestPlainFormatterOutput(t *testing.T) {
	l := logrus.New()
	l.SetFormatter(PlainFormatter{})
	var buf bytes.Buffer
	l.SetOutput(&buf)

	entry := logrus.NewEntry(l).WithField("component", "sandbox").WithField("took", "12ms")
	entry.Info("execution finished")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Fatalf("missing level: %q", out)
	}
	if !strings.Contains(out, "[sandbox]") {
		t.Fatalf("missing component: %q", out)
	}
	if !strings.Contains(out, "execution finished") {
		t.Fatalf("missing message: %q", out)
	}
	if !strings.Contains(out, "took=12ms") {
		t.Fatalf("missing fields: %q", out)
	}
}

func TestNamedAttachesComponent(t *testing.T) {
	entry := Named("dispatch")
	if got, ok := entry.Data["component"].(string); !ok || got != "dispatch" {
		t.Fatalf("Named component = %v", entry.Data["component"])
	}
	if entry := Named(""); len(entry.Data) != 0 {
		t.Fatalf("Named(\"\") should not attach fields: %v", entry.Data)
	}
}

func TestShortenFilePath(t *testing.T) {
	got := shortenFilePath("/home/dev/funcsmith/internal/sandbox/executor.go")
	if got != "internal/sandbox/executor.go" {
		t.Fatalf("shortenFilePath = %q", got)
	}
	if got := shortenFilePath("/somewhere/else/file.go"); got != "file.go" {
		t.Fatalf("shortenFilePath fallback = %q", got)
	}
}
