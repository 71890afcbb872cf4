package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/doiregistry/events"
)

var aggregateEvents string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <doi>",
	Short: "Compute relation and usage aggregates of a DOI",
	Long: `Folds the event log of a DOI into citation, reference, version, part and
usage counts.

Events come from the configured store, or from a file of JSON events (one
per line) with --events.

Examples:
  doiregistry aggregate 10.5438/4K3M-NYVG --store sqlite --store-path doi.db
  doiregistry aggregate 10.5438/4K3M-NYVG --events events.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVarP(&aggregateEvents, "events", "e", "", "File of JSON events, one per line")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	voc, err := vocabulary()
	if err != nil {
		return err
	}
	opts := events.Options{Vocabulary: voc, Precedence: cfg.Precedence}

	var agg *events.Aggregates
	if aggregateEvents != "" {
		evs, err := readEvents(aggregateEvents)
		if err != nil {
			return err
		}
		agg = events.Aggregate(args[0], evs, opts)
	} else {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		agg, err = events.NewAggregator(store, nil, opts).Aggregates(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// readEvents reads newline-delimited JSON events, numbering them in file
// order.
func readEvents(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening events file: %w", err)
	}
	defer f.Close()

	now := time.Now()
	var evs []events.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		e, err := events.DecodeEvent(raw, now)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		e.Seq = int64(len(evs) + 1)
		evs = append(evs, e)
	}
	return evs, scanner.Err()
}
