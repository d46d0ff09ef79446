package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/task"
)

// Board is the live per-authority progress table. Observe is meant to be
// the engine's observer, which the engine calls from a single goroutine.
type Board struct {
	w     io.Writer
	order []task.Authority
	lanes map[task.Authority]engine.Progress
	// live redraws the whole table on every event; otherwise each event
	// prints one line.
	live bool
	// height is the number of lines the last Render drew.
	height int
}

// NewBoard creates a board writing to w. live should be true only when w is
// a terminal.
func NewBoard(w io.Writer, live bool) *Board {
	return &Board{w: w, lanes: map[task.Authority]engine.Progress{}, live: live}
}

// Observe records a progress event and redraws.
func (b *Board) Observe(ev engine.Event) {
	p := ev.Progress
	if _, ok := b.lanes[p.Authority]; !ok {
		b.order = append(b.order, p.Authority)
	}
	b.lanes[p.Authority] = p

	if !b.live {
		fmt.Fprintf(b.w, "%s\t%s\t%d/%d\t%s\n", p.Authority, p.State, p.Succeeded, p.Total, statusDetail(p))
		return
	}
	// Move up over the previous table and clear from there down, leaving
	// the output above the board alone.
	if b.height > 0 {
		fmt.Fprintf(b.w, "\x1b[%dA\x1b[J", b.height)
	}
	b.Render()
}

// Render draws the table once.
func (b *Board) Render() {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Authority", "State", "Progress", "Current", "Last ref"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, a := range b.order {
		p := b.lanes[a]
		table.Append([]string{
			string(a),
			string(p.State),
			strconv.Itoa(p.Succeeded) + "/" + strconv.Itoa(p.Total),
			statusDetail(p),
			p.LastRef,
		})
	}
	table.Render()
	b.height = bytes.Count(buf.Bytes(), []byte{'\n'})
	b.w.Write(buf.Bytes())
}

func statusDetail(p engine.Progress) string {
	if p.Err != nil {
		return p.Current + ": " + p.Err.Error()
	}
	return p.Current
}
