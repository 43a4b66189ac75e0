package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Width is the number of cells in the bar
const Width = 50

// Format renders one progress line, e.g.
//
//	[█████░░░░░] 50% Complete - Time elapsed: 00:01:05
//
// A zero total renders as complete.
func Format(done, total int, elapsed time.Duration, colored bool) string {
	ratio := 1.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio*Width + 0.5)
	cells := strings.Repeat("█", filled) + strings.Repeat("░", Width-filled)
	percent := fmt.Sprintf("%d%%", int(ratio*100+0.5))
	if colored {
		cells = paint(color.FgGreen, cells)
		percent = paint(color.FgCyan, percent)
	}
	return fmt.Sprintf("[%s] %s Complete - Time elapsed: %s", cells, percent, clock(elapsed))
}

// paint colors s regardless of color.NoColor; the caller already decided
// whether the output is a terminal.
func paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// Bar redraws a progress line in place with carriage returns
type Bar struct {
	w     io.Writer
	color bool
	now   func() time.Time

	label string
	total int
	start time.Time
}

// NewBar writes to w, using colors only when w is a terminal
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w, color: isTerminal(w), now: time.Now}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins a new phase of total steps
func (b *Bar) Start(label string, total int) {
	b.label = label
	b.total = total
	b.start = b.now()
	b.draw(0)
}

// Update redraws the line with done steps completed
func (b *Bar) Update(done int) {
	b.draw(done)
}

// Finish completes the line
func (b *Bar) Finish() {
	b.draw(b.total)
	fmt.Fprintln(b.w)
}

func (b *Bar) draw(done int) {
	line := Format(done, b.total, b.now().Sub(b.start), b.color)
	if b.label != "" {
		line = b.label + " " + line
	}
	fmt.Fprint(b.w, "\r"+line)
}
