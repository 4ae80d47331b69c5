package experiment

import (
	"context"
	"strconv"

	"github.com/dustin/go-humanize"

	launcher "smartsim.io/smartsim-hpc/launcher"
	ledger "smartsim.io/smartsim-hpc/ledger"
)

var summaryHeader = []string{"Name", "Entity-Type", "RunID", "JobID", "Status", "Returncode", "Started", "Ended"}

// SummaryTable renders launches as rows under a header row. Times are
// relative ("3 minutes ago").
func SummaryTable(launches []ledger.Launch) [][]string {
	table := [][]string{summaryHeader}
	for _, l := range launches {
		code := "-"
		if l.ReturnCode != launcher.NoReturnCode {
			code = strconv.Itoa(l.ReturnCode)
		}
		ended := "-"
		if l.CompletedAt != nil {
			ended = humanize.Time(*l.CompletedAt)
		}
		table = append(table, []string{
			l.Name,
			l.EntityType,
			strconv.Itoa(l.RunID),
			l.JobID,
			l.Status.String(),
			code,
			humanize.Time(l.StartedAt),
			ended,
		})
	}
	return table
}

// Summary returns the launches of this experiment as a table.
func (e *Experiment) Summary(ctx context.Context) ([][]string, error) {
	launches, err := e.ledger.Summary(ctx, e.name)
	if err != nil {
		return nil, err
	}
	return SummaryTable(launches), nil
}
