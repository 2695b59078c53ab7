package bgone

import (
	"log"
	"strings"
)

// Observer receives progress events from a Remover or Deducer. Methods may
// be called from multiple goroutines.
type Observer interface {
	// Stage marks the start of a named step ("detect background",
	// "deduce colors", "unmix").
	Stage(name string)
	// Progress reports done out of total units of the current stage.
	Progress(done, total int)
	// Deduced reports the colors chosen for the Unknown specs, in order.
	Deduced(colors []Color)
}

// LogObserver writes stages and results through the standard logger.
// Progress is logged every Every units; 0 disables progress lines.
type LogObserver struct {
	Logger *log.Logger
	Every  int
}

func (o LogObserver) printf(format string, v ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

func (o LogObserver) Stage(name string) {
	o.printf("%s...", name)
}

func (o LogObserver) Progress(done, total int) {
	if o.Every <= 0 || total <= 0 {
		return
	}
	if done%o.Every == 0 || done == total {
		o.printf("   %d/%d (%d%%)", done, total, done*100/total)
	}
}

func (o LogObserver) Deduced(colors []Color) {
	hex := make([]string, len(colors))
	for i, c := range colors {
		hex[i] = c.Hex()
	}
	noun := "colors"
	if len(colors) == 1 {
		noun = "color"
	}
	o.printf("Deduced %d unknown %s: %s", len(colors), noun, strings.Join(hex, " "))
}

type nopObserver struct{}

func (nopObserver) Stage(string)      {}
func (nopObserver) Progress(int, int) {}
func (nopObserver) Deduced([]Color)   {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
