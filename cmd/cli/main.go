package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dometrics/dometrics/internal/adapter/handler"
	"github.com/dometrics/dometrics/internal/core/domain"
)

func main() {
	targetFile := flag.String("file", "domains.txt", "File with one name.tld per line")
	serverAddr := flag.String("server", "localhost:50051", "dometrics gRPC address")
	maxRisk := flag.Float64("max-risk", 70, "Fail when any domain scores above this risk")
	mode := flag.String("mode", "sync", "Scoring mode: sync or async")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall deadline")
	flag.Parse()

	file, err := os.Open(*targetFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(2)
	}
	targets, err := parseTargets(file)
	file.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to dometrics: %v\n", err)
		os.Exit(2)
	}

	client := handler.NewScoringClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("scoring %d domains from %s against %s\n\n", len(targets), *targetFile, *serverAddr)

	results := make([]result, 0, len(targets))
	for _, attrs := range targets {
		scores, err := client.ComputeScores(ctx, attrs, *mode)
		results = append(results, result{fqdn: attrs.FQDN(), scores: scores, err: err})
	}
	conn.Close()

	flagged := printTable(os.Stdout, results, *maxRisk)

	fmt.Println()
	if flagged > 0 {
		fmt.Printf("FAIL: %d of %d domains above risk %.0f or failed\n", flagged, len(results), *maxRisk)
		os.Exit(1)
	}
	fmt.Printf("OK: %d domains scored, none above risk %.0f\n", len(results), *maxRisk)
}

type result struct {
	fqdn   string
	scores domain.DomainScores
	err    error
}

// parseTargets reads one domain per line. Blank lines and '#' comments are skipped;
// lines without a TLD are ignored.
func parseTargets(r io.Reader) ([]domain.DomainAttributes, error) {
	var targets []domain.DomainAttributes
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		name, tld := domain.ParseDomainName(strings.Fields(line)[0])
		if name == "" || tld == "" {
			continue
		}
		key := name + "." + tld
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, domain.DomainAttributes{Name: name, TLD: tld})
	}
	return targets, scanner.Err()
}

// printTable writes one row per result and returns how many exceeded maxRisk. A
// failed call counts as flagged.
func printTable(out io.Writer, results []result, maxRisk float64) int {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tRISK\tRARITY\tMOMENTUM\tFORECAST\tVALUE\tSOURCE\tSTATUS")

	flagged := 0
	for _, r := range results {
		if r.err != nil {
			flagged++
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\tERROR: %v\n", r.fqdn, r.err)
			continue
		}

		status := "ok"
		if r.scores.Risk > maxRisk {
			status = "HIGH RISK"
			flagged++
		}
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t$%.0f\t%s\t%s\n",
			r.fqdn,
			r.scores.Risk,
			r.scores.Rarity,
			r.scores.Momentum,
			r.scores.Forecast,
			r.scores.CurrentValue,
			r.scores.ValuationSource,
			status,
		)
	}
	w.Flush()
	return flagged
}
