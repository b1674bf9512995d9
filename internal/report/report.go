// Package report renders poll results for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/booking"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/scheduler"
	"github.com/example/courtsniper/internal/venue"
)

// Printer writes styled output to one writer. Colors are only used when
// the writer is a color-capable terminal.
type Printer struct {
	w io.Writer
	r *lipgloss.Renderer

	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
	muted lipgloss.Style
	box   lipgloss.Style
}

func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:     w,
		r:     r,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("196")),
		muted: r.NewStyle().Foreground(lipgloss.Color("245")),
		box:   r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (p *Printer) outcome(o booking.Outcome) string {
	switch o {
	case booking.Booked:
		return p.ok.Render(o.String())
	case booking.Unavailable:
		return p.warn.Render(o.String())
	default:
		return p.bad.Render(o.String())
	}
}

// Cycle prints the summary of one poll cycle.
func (p *Printer) Cycle(rep scheduler.CycleReport) {
	head := p.title.Render(fmt.Sprintf("Poll #%d", rep.Poll)) + " " +
		p.muted.Render(rep.Started.Format("15:04:05")+" ("+rep.Finished.Sub(rep.Started).Round(time.Millisecond).String()+")")

	var lines []string
	lines = append(lines, head)
	switch {
	case rep.Err != nil:
		lines = append(lines, p.bad.Render("probe failed: "+rep.Err.Error()))
	case len(rep.Opportunities) == 0:
		lines = append(lines, p.muted.Render("no courts available yet"))
	default:
		for _, o := range rep.Opportunities {
			lines = append(lines, fmt.Sprintf("%s  %dmin  courts %s", o.Start, o.Duration, o.Courts))
		}
		for _, a := range rep.Attempts {
			line := fmt.Sprintf("%s  %s %dmin court %d  %s (tries %d)",
				a.Actor, a.Assignment.Opportunity.Start, a.Assignment.Opportunity.Duration,
				a.Assignment.Court, p.outcome(a.Outcome), a.Tries)
			if a.Outcome != booking.Booked && a.Message != "" {
				line += p.muted.Render("  " + a.Message)
			}
			lines = append(lines, line)
		}
		lines = append(lines, fmt.Sprintf("%s %d/%d booked, %d unavailable, %d failed",
			p.title.Render("Result:"), rep.Booked, len(rep.Attempts), rep.Unavailable, rep.Failed))
	}
	fmt.Fprintln(p.w, p.box.Render(strings.Join(lines, "\n")))
}

// Plan prints a dry-run allocation. actors holds the account emails by
// actor index.
func (p *Printer) Plan(opps []allocator.Opportunity, as []allocator.Assignment, actors []string) {
	if len(opps) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("no courts available"))
		return
	}
	fmt.Fprintln(p.w, p.title.Render("Opportunities"))
	for _, o := range opps {
		fmt.Fprintf(p.w, "  %s  %dmin  courts %s\n", o.Start, o.Duration, o.Courts)
	}
	fmt.Fprintln(p.w, p.title.Render("Assignments"))
	for _, a := range as {
		who := strconv.Itoa(a.Actor)
		if a.Actor < len(actors) {
			who = actors[a.Actor]
		}
		fmt.Fprintf(p.w, "  %s: %s-%s court %d\n", who, a.Opportunity.Start, a.Opportunity.End(), a.Court)
	}
	if len(as) < len(actors) {
		fmt.Fprintln(p.w, p.warn.Render(fmt.Sprintf("%d account(s) left without a court", len(actors)-len(as))))
	}
}

// History prints recent cycles, newest first.
func (p *Printer) History(cycles []history.Cycle) {
	if len(cycles) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("no history"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		Headers("STARTED", "VENUE", "POLL", "FOUND", "BOOKED", "UNAVAIL", "FAILED", "ERROR")
	for _, c := range cycles {
		t.Row(
			c.Started.Local().Format("2006-01-02 15:04:05"),
			c.Venue,
			strconv.Itoa(c.Poll),
			strconv.Itoa(c.Opportunities),
			strconv.Itoa(c.Booked),
			strconv.Itoa(c.Unavailable),
			strconv.Itoa(c.Failed),
			truncate(c.Error, 40),
		)
	}
	fmt.Fprintln(p.w, t.Render())
}

// Attempts prints the booking attempts of one cycle.
func (p *Printer) Attempts(atts []history.Attempt) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		Headers("ACTOR", "SLOT", "MIN", "COURT", "OUTCOME", "TRIES", "MESSAGE")
	for _, a := range atts {
		t.Row(a.Actor, a.Slot, strconv.Itoa(a.Duration), strconv.Itoa(a.Court), a.Outcome, strconv.Itoa(a.Tries), truncate(a.Message, 50))
	}
	fmt.Fprintln(p.w, t.Render())
}

// Venues lists venue profiles.
func (p *Printer) Venues(ps []venue.Profile) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		Headers("NAME", "ORG", "SCHEDULER", "STRATEGY", "INTERVAL", "BURST")
	for _, v := range ps {
		t.Row(v.Name, v.OrgID, v.SchedulerID, string(v.Strategy), v.Cadence.Interval.String(), strconv.Itoa(v.Cadence.BurstAttempts))
	}
	fmt.Fprintln(p.w, t.Render())
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
