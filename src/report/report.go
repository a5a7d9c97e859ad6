package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mkmccarty/CoopBoard/src/cookies"
	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/leaderboard"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/olekukonko/tablewriter"
)

// DefaultNameWidth is the display width player names are truncated to.
const DefaultNameWidth = 16

// tooLong is the predicted duration past which no duration is printed.
const tooLong = 100 * 24 * time.Hour

// Options controls the tables written by WriteResult.
type Options struct {
	Players   bool
	NameWidth int
	// Top is the size of each section's player ranking. Zero means
	// leaderboard.DefaultTopPlayers, negative hides it.
	Top int
}

// WriteResult writes one coop table per requested flag section, then the
// failed coops. Each section keeps the result's order.
func WriteResult(w io.Writer, res *leaderboard.Result, opts Options) {
	title := res.ContractID
	if res.Contract != nil && res.Contract.Name != "" {
		title = fmt.Sprintf("%s (%s)", res.Contract.Name, res.ContractID)
	}
	fmt.Fprintf(w, "%s  built %s  run %s\n", title, res.BuiltAt.UTC().Format(time.RFC3339), res.RunID)

	res.Flags.Each(func(f maj.Flags) {
		var section []*coop.Aggregate
		for _, a := range res.Coops {
			if a.Flags.Intersects(f) {
				section = append(section, a)
			}
		}
		fmt.Fprintf(w, "\n%s (%d)\n", f, len(section))
		if len(section) == 0 {
			return
		}
		WriteCoops(w, section)
		if opts.Top >= 0 {
			top := opts.Top
			if top == 0 {
				top = leaderboard.DefaultTopPlayers
			}
			fmt.Fprintln(w)
			WriteTopPlayers(w, res.TopPlayers(f, top), opts.NameWidth)
		}
		if opts.Players {
			for _, a := range section {
				fmt.Fprintf(w, "\n%s\n", a.CoopID)
				WritePlayers(w, a, opts.NameWidth)
			}
		}
	})

	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "\nSkipped (%d)\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s: %v\n", f.Code, f.Err)
		}
	}
}

// WriteCoops writes the ranked coop table.
func WriteCoops(w io.Writer, coops []*coop.Aggregate) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Coop", "Flags", "Duration", "Completion", "Boosted", "Tokens", "Shipped", "Goal", ""})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, a := range coops {
		onTrack := ""
		if !a.OnTrack {
			onTrack = "behind"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			a.CoopID,
			a.Flags.String(),
			fmtPredicted(a.PredictedDurationTime()),
			a.CompletionTime().UTC().Format("Jan 2 15:04"),
			fmt.Sprintf("%d/%d", a.BoostedCount, a.Size),
			strconv.Itoa(a.TotalTokens),
			FmtEggs(a.TotalShipped),
			FmtEggs(a.EggGoal),
			onTrack,
		})
	}
	table.Render()
}

func fmtPredicted(d time.Duration) string {
	if d >= tooLong {
		return "too long"
	}
	return FmtDuration(d)
}

// WriteTopPlayers writes a section's player ranking and its average score.
func WriteTopPlayers(w io.Writer, st leaderboard.Standing, nameWidth int) {
	if st.Total == 0 {
		fmt.Fprintf(w, "No on-track %s players\n", st.Flag)
		return
	}
	if nameWidth <= 0 {
		nameWidth = DefaultNameWidth
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Player", "Coop", "Score", "Rate/hr"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, p := range st.Players {
		table.Append([]string{
			strconv.Itoa(i + 1),
			Truncate(p.UserName, nameWidth),
			p.CoopID,
			FmtInt(p.ContractScore),
			FmtEggs(p.Rate * 3600),
		})
	}
	table.Render()
	fmt.Fprintf(w, "Avg. score %s, top %d of %d players\n", FmtInt(int64(st.AverageScore)), len(st.Players), st.Total)
}

// WritePlayers writes the ranked player table of one coop.
func WritePlayers(w io.Writer, a *coop.Aggregate, nameWidth int) {
	if nameWidth <= 0 {
		nameWidth = DefaultNameWidth
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Player", "Score", "Ratio", "Rate/hr", "Buff", "Teamwork"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, p := range a.Players {
		table.Append([]string{
			strconv.Itoa(i + 1),
			Truncate(p.UserName, nameWidth),
			FmtInt(p.ContractScore),
			fmt.Sprintf("%.3f", p.ContributionRatio),
			FmtEggs(p.Rate * 3600),
			fmt.Sprintf("%.3f", p.BuffFactor),
			fmt.Sprintf("%.4f", p.TeamworkScore),
		})
	}
	table.Render()
}

// WriteContracts writes the contract catalog, newest first as given.
func WriteContracts(w io.Writer, contracts []ei.Contract) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Start", "Size", "Length", ""})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	for _, c := range contracts {
		start := ""
		if !c.StartTime.IsZero() {
			start = c.StartTime.UTC().Format("2006-01-02")
		}
		legacy := ""
		if c.Legacy {
			legacy = "legacy"
		}
		table.Append([]string{
			c.ID,
			Truncate(c.Name, 32),
			start,
			strconv.Itoa(c.MaxCoopSize),
			FmtDuration(time.Duration(c.LengthSeconds) * time.Second),
			legacy,
		})
	}
	table.Render()
}

// WriteCookies writes one cookie ledger entry.
func WriteCookies(w io.Writer, e *cookies.Entry) {
	fmt.Fprintf(w, "%s  recorded %s\n", e.ContractID, e.RecordedAt.UTC().Format(time.RFC3339))
	if e.SeasonID != "" {
		fmt.Fprintf(w, "Season: %s\n", e.SeasonID)
	}
	if e.FastestCoop == "" {
		fmt.Fprintln(w, "Fastest coop: none")
	} else {
		d := time.Duration(e.FastestDuration * float64(time.Second))
		fmt.Fprintf(w, "Fastest coop: %s (%s)\n", e.FastestCoop, FmtDuration(d))
		fmt.Fprintf(w, "  players: %s\n", joinOrNone(e.FastestCoopPlayers))
	}
	fmt.Fprintf(w, "Sinks: %s\n", joinOrNone(e.SinkPlayers))
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
