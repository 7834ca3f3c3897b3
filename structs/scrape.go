package structs

// ScrapeOptions are the per-run settings taken from the command line.
type ScrapeOptions struct {
	Pages  int
	DryRun bool
}

// ScrapeResult summarizes one finished run.
type ScrapeResult struct {
	Platform    string
	ContentType string
	Pages       int
	Summary     []string
}
