package bgone

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	o := LogObserver{Logger: log.New(&buf, "", 0), Every: 2}

	o.Stage("unmix")
	for i := 1; i <= 3; i++ {
		o.Progress(i, 3)
	}
	o.Deduced([]Color{{255, 0, 0}, {0, 255, 0}})
	o.Deduced([]Color{{0, 0, 255}})

	want := []string{
		"unmix...",
		"   2/3 (66%)",
		"   3/3 (100%)",
		"Deduced 2 unknown colors: #ff0000 #00ff00",
		"Deduced 1 unknown color: #0000ff",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("log output:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestLogObserverQuietProgress(t *testing.T) {
	var buf bytes.Buffer
	o := LogObserver{Logger: log.New(&buf, "", 0)}
	o.Progress(5, 10)
	if buf.Len() != 0 {
		t.Errorf("progress logged with Every 0: %q", buf.String())
	}
}
