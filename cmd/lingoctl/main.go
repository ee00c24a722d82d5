// Command lingoctl opens a .lingo database and runs a single query or
// prints its summary stats, for ad-hoc inspection and scripting.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	lingo "github.com/RobAntunes/lingodb"
	"github.com/RobAntunes/lingodb/internal/format"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "stats":
		err = runStats(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		err = fmt.Errorf("unknown subcommand %q", os.Args[1])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: lingoctl <stats|query> [flags] <file.lingo>")
	fmt.Fprintln(os.Stderr, "  lingoctl stats <file.lingo>")
	fmt.Fprintln(os.Stderr, "  lingoctl query [flags] <file.lingo>")
}

func runStats(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output stats as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("stats requires exactly one file argument")
	}

	db, err := lingo.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer db.Close()

	snap := db.Stats()
	if *jsonOut {
		enc, err := json.Marshal(struct {
			NodeCount int `json:"nodeCount"`
			Snapshot  any `json:"stats"`
		}{db.NodeCount(), snap})
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	}

	fmt.Printf("nodes:          %d\n", db.NodeCount())
	fmt.Printf("cache hits:     %d\n", snap.CacheHits)
	fmt.Printf("cache misses:   %d\n", snap.CacheMisses)
	fmt.Printf("executions:     %d\n", snap.Executions)
	fmt.Printf("timeouts:       %d\n", snap.Timeouts)
	fmt.Printf("avg exec time:  %s\n", time.Duration(snap.AverageNs))
	return nil
}

func runQuery(args []string) error {
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	find := fs.String("find", "", "Anchor surface form (required)")
	layerUp := fs.Int("layer-up", 0, "Move up N layers after the anchor")
	layerDown := fs.Int("layer-down", 0, "Move down N layers after the anchor")
	filterEtymology := fs.String("etymology", "", "Keep only nodes of this etymology (e.g. greek)")
	sortBy := fs.String("sort", "", "Sort results (id, frequency, strength, distance)")
	limit := fs.Int("limit", 20, "Maximum number of results")
	aggressive := fs.Bool("aggressive", false, "Compile at the aggressive optimization level")
	jsonOut := fs.Bool("json", false, "Output results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("query requires exactly one file argument")
	}
	if *find == "" {
		return errors.New("--find is required")
	}

	db, err := lingo.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer db.Close()

	q := lingo.NewQuery().Find(*find)
	if *layerUp > 0 {
		q = q.LayerUp(*layerUp)
	}
	if *layerDown > 0 {
		q = q.LayerDown(*layerDown)
	}
	if *filterEtymology != "" {
		origin, err := parseEtymology(*filterEtymology)
		if err != nil {
			return err
		}
		q = q.FilterByEtymology(origin)
	}
	if *sortBy != "" {
		criterion, err := parseSortCriterion(*sortBy)
		if err != nil {
			return err
		}
		q = q.Sort(criterion)
	}
	if *limit > 0 {
		q = q.Limit(*limit)
	}

	level := lingo.Balanced
	if *aggressive {
		level = lingo.Aggressive
	}

	cq, err := db.Compile(q, level)
	if err != nil {
		return err
	}

	res, err := db.Execute(cq, time.Time{})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	}

	for _, n := range res.Nodes {
		fmt.Printf("%-20s id=%d layer=%s etymology=%d\n", n.SurfaceForm, n.ID, n.Layer, n.Etymology)
	}
	fmt.Fprintf(os.Stderr, "%d results in %s\n", len(res.Nodes), res.ExecutionTime)
	return nil
}

func parseEtymology(s string) (format.EtymologyOrigin, error) {
	switch strings.ToLower(s) {
	case "germanic":
		return format.EtymologyGermanic, nil
	case "latin":
		return format.EtymologyLatin, nil
	case "greek":
		return format.EtymologyGreek, nil
	case "french":
		return format.EtymologyFrench, nil
	case "arabic":
		return format.EtymologyArabic, nil
	case "sanskrit":
		return format.EtymologySanskrit, nil
	case "chinese":
		return format.EtymologyChinese, nil
	case "japanese":
		return format.EtymologyJapanese, nil
	case "modern":
		return format.EtymologyModern, nil
	case "unknown":
		return format.EtymologyUnknown, nil
	default:
		return 0, fmt.Errorf("unknown etymology %q", s)
	}
}

func parseSortCriterion(s string) (lingo.SortCriterion, error) {
	switch strings.ToLower(s) {
	case "id":
		return lingo.SortByID, nil
	case "frequency":
		return lingo.SortByFrequency, nil
	case "strength":
		return lingo.SortByStrength, nil
	case "distance":
		return lingo.SortByDistance, nil
	default:
		return 0, fmt.Errorf("unknown sort criterion %q", s)
	}
}
