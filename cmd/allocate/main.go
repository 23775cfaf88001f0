// Command allocate prints an apartment statement for a TOML snapshot.
//
//	allocate -snapshot building.toml
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"github.com/septivank/rental-billing-worker/internal/format"
	"github.com/septivank/rental-billing-worker/internal/snapshot"
)

func main() {
	path := flag.String("snapshot", "snapshot.toml", "Path to the TOML snapshot")
	flag.Parse()

	if err := run(*path, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := ierr.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

func run(path string, out io.Writer) error {
	s, err := snapshot.LoadFile(path)
	if err != nil {
		return err
	}
	summary, money, err := s.Bill()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METER\tSCOPE\tMETHOD\tSTATUS")
	for _, item := range summary.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.Meter.Name,
			format.ScopeLabel(item.Meter.Scope),
			format.DistributionLabel(item.Meter.DistributionMethod),
			item.Status,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal: %s", money.Format(summary.Total))
	if summary.Pending > 0 {
		fmt.Fprintf(out, " (%d pending)", summary.Pending)
	}
	fmt.Fprintln(out)
	for _, warning := range summary.Warnings {
		fmt.Fprintln(out, "warning:", warning)
	}
	return nil
}
