package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/parse"
	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

// jst picks the default race date; cards roll over on Japan time.
var jst = time.FixedZone("JST", 9*60*60)

var (
	predictVenue string
	predictRace  int
	predictDate  string
	predictJSON  bool
)

var predictCmd = &cobra.Command{
	Use:   "predict [query]",
	Short: "Predict one race and print ticket slates",
	Long:  `Accepts a free-text query like "桐生 8R 20260825" (date optional) or the --venue/--race/--date flags, runs the full pipeline and prints the narrative, the ticket buckets and the confidence grade.`,
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, err := buildQuery(args)
		if err != nil {
			return err
		}

		env, err := initPredictor(ctx, "predict")
		if err != nil {
			return err
		}
		defer env.Close()

		pred, err := env.Predictor.Predict(ctx, q)
		if err != nil {
			return err
		}

		if predictJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pred)
		}

		formatPrediction(os.Stdout, pred)
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictVenue, "venue", "", "venue name, reading or code (used when no query is given)")
	predictCmd.Flags().IntVar(&predictRace, "race", 0, "race number 1-12")
	predictCmd.Flags().StringVar(&predictDate, "date", "", "race date YYYYMMDD (default today JST)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "emit the prediction as JSON")
	rootCmd.AddCommand(predictCmd)
}

// buildQuery resolves the race from free-text args when present, otherwise
// from the flags.
func buildQuery(args []string) (model.RaceQuery, error) {
	if len(args) > 0 {
		return parse.Parse(strings.Join(args, " "))
	}
	return resolveQuery(predictVenue, predictRace, predictDate)
}

// resolveQuery builds a validated query from flag-style inputs. The venue
// accepts a name, reading, alias or numeric code.
func resolveQuery(venueArg string, raceNo int, date string) (model.RaceQuery, error) {
	if venueArg == "" {
		return model.RaceQuery{}, eris.New("venue is required (name, reading or code 1-24)")
	}
	v, ok := venue.ByName(venueArg)
	if !ok {
		if id, convErr := strconv.Atoi(strings.TrimSpace(venueArg)); convErr == nil {
			v, ok = venue.ByID(id)
		}
	}
	if !ok {
		return model.RaceQuery{}, eris.Errorf("unknown venue %q", venueArg)
	}
	if date == "" {
		date = time.Now().In(jst).Format("20060102")
	}
	return model.NewRaceQuery(v.ID, raceNo, date)
}

// formatPrediction writes the human-readable output: race header, narrative,
// the bucket table, then confidence and provenance.
func formatPrediction(out io.Writer, pred *model.Prediction) {
	name := fmt.Sprintf("venue %d", pred.Query.VenueID)
	if v, ok := venue.ByID(pred.Query.VenueID); ok {
		name = v.Name
	}
	_, _ = fmt.Fprintf(out, "%s %dR (%s)\n\n", name, pred.Query.RaceNumber, pred.Query.Date)
	_, _ = fmt.Fprintln(out, pred.Narrative)
	_, _ = fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Bucket", "Tickets"})
	data := [][]string{
		{"本命", strings.Join(pred.Buckets.Primary, "  ")},
		{"抑え", strings.Join(pred.Buckets.Cover, "  ")},
		{"穴", strings.Join(pred.Buckets.Longshot, "  ")},
	}
	_ = table.Bulk(data)
	_ = table.Render()

	_, _ = fmt.Fprintf(out, "\n信頼度: %s\n", pred.Confidence)
	_, _ = fmt.Fprintf(out, "source: %s\n", pred.SourceURL)
	if n := len(pred.Diagnostic.AttemptedURLs); n > 0 {
		_, _ = fmt.Fprintf(out, "(%d earlier source attempt(s) failed)\n", n)
	}
}
