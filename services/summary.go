package services

import (
	"fmt"
	"strings"
)

// RunReport aggregates per-stage counters for one pipeline run. The
// scraper fills it in as pages are processed; main prints it at the end.
type RunReport struct {
	Keyword      string
	PagesVisited int
	PagesFailed  int
	RawItems     int
	Dropped      int // failed normalization or invalid link
	FilteredOut  int
	Duplicates   int
	NewListings  int
	Notified     int
	EnrichErrors int
}

// Print renders the report to stdout.
func (r *RunReport) Print() {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  CRAWL SUMMARY — %s\033[0m\n", r.Keyword)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  Pages visited     : \033[1m%d\033[0m", r.PagesVisited)
	if r.PagesFailed > 0 {
		fmt.Printf("  (%d failed)", r.PagesFailed)
	}
	fmt.Println()
	fmt.Printf("  Raw items seen    : \033[1m%d\033[0m\n", r.RawItems)
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Dropped (parse)   : %d\n", r.Dropped)
	fmt.Printf("  Filtered out      : %d\n", r.FilteredOut)
	fmt.Printf("  Already seen      : %d\n", r.Duplicates)
	if r.EnrichErrors > 0 {
		fmt.Printf("  Partial details   : %d\n", r.EnrichErrors)
	}
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  New listings      : \033[1;32m%d\033[0m\n", r.NewListings)
	fmt.Printf("  Notified          : \033[1;32m%d\033[0m\n", r.Notified)

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}
