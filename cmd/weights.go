package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect and transfer venue weight profiles",
	Long:  "Commands for viewing the metric weights used in scoring and moving learned profiles between installations. Venue 0 is the global profile.",
}

// -- weights show --

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one venue's weight profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		venueID, _ := cmd.Flags().GetInt("venue")
		w, err := st.LoadWeights(ctx, venueID)
		if err != nil {
			if !eris.Is(err, store.ErrNotFound) {
				return eris.Wrap(err, "weights show")
			}
			fmt.Fprintf(os.Stderr, "No stored profile for venue %d, showing built-in defaults.\n", venueID)
			w = model.DefaultWeights()
		}

		formatWeights(os.Stdout, w)
		return nil
	},
}

// -- weights export --

var weightsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored profile as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return dumpWeights(ctx, st, out)
	},
}

// -- weights import --

var weightsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import profiles from a YAML export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		n, err := loadWeightsYAML(ctx, st, f)
		if err != nil {
			return err
		}

		zap.L().Info("weight profiles imported",
			zap.Int("profiles", n),
			zap.String("file", args[0]))
		return nil
	},
}

func init() {
	weightsShowCmd.Flags().Int("venue", 0, "venue code (0 = global profile)")
	weightsExportCmd.Flags().String("out", "", "output file (default stdout)")

	weightsCmd.AddCommand(weightsShowCmd)
	weightsCmd.AddCommand(weightsExportCmd)
	weightsCmd.AddCommand(weightsImportCmd)
	rootCmd.AddCommand(weightsCmd)
}

// weightsDoc is the YAML transfer form of stored weight profiles, keyed by
// venue code. Venue 0 is the global profile.
type weightsDoc struct {
	Profiles map[int]map[string]float64 `yaml:"profiles"`
}

// dumpWeights collects every stored profile into one YAML document.
func dumpWeights(ctx context.Context, st store.Store, out io.Writer) error {
	doc := weightsDoc{Profiles: make(map[int]map[string]float64)}
	for id := 0; id <= len(venue.All()); id++ {
		w, err := st.LoadWeights(ctx, id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				continue
			}
			return eris.Wrapf(err, "load weights for venue %d", id)
		}
		doc.Profiles[id] = w.Metrics
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "marshal weights")
	}
	_, err = out.Write(data)
	return err
}

// loadWeightsYAML validates and saves every profile in the document,
// returning how many were written.
func loadWeightsYAML(ctx context.Context, st store.Store, in io.Reader) (int, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return 0, eris.Wrap(err, "read weights")
	}

	var doc weightsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, eris.Wrap(err, "parse weights")
	}

	n := 0
	for id, metrics := range doc.Profiles {
		if id < 0 || id > len(venue.All()) {
			return n, eris.Errorf("venue code %d out of range 0-%d", id, len(venue.All()))
		}
		var sum float64
		for key, v := range metrics {
			if v < 0 {
				return n, eris.Errorf("venue %d: negative weight for %s", id, key)
			}
			sum += v
		}
		if sum <= 0 {
			return n, eris.Errorf("venue %d: weights sum to zero", id)
		}
		if err := st.SaveWeights(ctx, id, model.WeightSet{Metrics: metrics}); err != nil {
			return n, eris.Wrapf(err, "save weights for venue %d", id)
		}
		n++
	}
	return n, nil
}

// formatWeights renders one profile as a table, heaviest metric first.
func formatWeights(out io.Writer, w model.WeightSet) {
	keys := make([]string, 0, len(w.Metrics))
	for k := range w.Metrics {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if w.Metrics[keys[i]] != w.Metrics[keys[j]] {
			return w.Metrics[keys[i]] > w.Metrics[keys[j]]
		}
		return keys[i] < keys[j]
	})

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Metric", "Weight"})
	var data [][]string
	for _, k := range keys {
		data = append(data, []string{k, fmt.Sprintf("%.4f", w.Metrics[k])})
	}
	_ = table.Bulk(data)
	_ = table.Render()
}
