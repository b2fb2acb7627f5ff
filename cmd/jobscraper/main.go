// The jobscraper binary runs the multi-site job posting scraper, either as
// a one-shot CLI crawl or as an HTTP service.
package main

import "github.com/joblens/jobscraper/cmd"

func main() {
	cmd.Execute()
}
