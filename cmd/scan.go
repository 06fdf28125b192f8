package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

var (
	scanVenue string
	scanDate  string
	scanFrom  int
	scanTo    int
	scanJSON  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Predict every race on one venue's card",
	Long:  "Runs the prediction pipeline for a range of races at a single venue. Races that fail to fetch are reported in the summary, never fatal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if scanFrom < 1 || scanTo > 12 || scanFrom > scanTo {
			return eris.Errorf("race range %d-%d out of bounds 1-12", scanFrom, scanTo)
		}

		first, err := resolveQuery(scanVenue, scanFrom, scanDate)
		if err != nil {
			return err
		}

		env, err := initPredictor(ctx, "scan")
		if err != nil {
			return err
		}
		defer env.Close()

		rows := make([]scanRow, scanTo-scanFrom+1)
		g := new(errgroup.Group)
		g.SetLimit(cfg.Scan.Concurrency)
		for i := range rows {
			raceNo := scanFrom + i
			g.Go(func() error {
				// Venue, date and range were validated above.
				q := model.RaceQuery{VenueID: first.VenueID, RaceNumber: raceNo, Date: first.Date}
				pred, err := env.Predictor.Predict(ctx, q)
				if err != nil {
					rows[i] = scanRow{Race: raceNo, Error: err.Error()}
					return nil
				}
				rows[i] = scanRow{Race: raceNo, Prediction: pred}
				return nil
			})
		}
		_ = g.Wait()

		predicted := 0
		for _, r := range rows {
			if r.Error == "" {
				predicted++
			}
		}
		zap.L().Info("scan complete",
			zap.Int("venue", first.VenueID),
			zap.String("date", first.Date),
			zap.Int("predicted", predicted),
			zap.Int("failed", len(rows)-predicted))

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		formatScanRows(os.Stdout, rows)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanVenue, "venue", "", "venue name, reading or code (required)")
	scanCmd.Flags().StringVar(&scanDate, "date", "", "race date YYYYMMDD (default today JST)")
	scanCmd.Flags().IntVar(&scanFrom, "from", 1, "first race number")
	scanCmd.Flags().IntVar(&scanTo, "to", 12, "last race number")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the scan results as JSON")
	_ = scanCmd.MarkFlagRequired("venue")
	rootCmd.AddCommand(scanCmd)
}

// scanRow is one race's result within a card scan.
type scanRow struct {
	Race       int               `json:"race"`
	Prediction *model.Prediction `json:"prediction,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// formatScanRows writes the card summary as a table, one row per race.
func formatScanRows(out io.Writer, rows []scanRow) {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"R", "Grade", "Primary", "Note"})
	var data [][]string
	for _, r := range rows {
		if r.Error != "" {
			data = append(data, []string{strconv.Itoa(r.Race), "-", "-", shorten(r.Error, 60)})
			continue
		}
		data = append(data, []string{
			strconv.Itoa(r.Race),
			r.Prediction.Confidence,
			strings.Join(r.Prediction.Buckets.Primary, "  "),
			"",
		})
	}
	_ = table.Bulk(data)
	_ = table.Render()
}

// shorten truncates long error text for a table cell.
func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
