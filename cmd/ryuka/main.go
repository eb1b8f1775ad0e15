// Ryuka is a media resolution gateway: it answers lookups for YouTube,
// TikTok, Instagram and Facebook links from a bounded TTL cache, falling back
// across an ordered list of third-party providers on a miss.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/ryuka.yaml", "path to config file (empty = built-in defaults)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ryuka", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
