// Command ddgorescue-mkimage creates a zero-filled sparse file of a given
// human-readable size, for building test fixtures (source or destination
// images) without needing a real failing device on hand.
//
// Adapted from cmd/ublk-mem/main.go's -size flag handling.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/behrlich/ddgorescue/internal/sizeparse"
)

func main() {
	var (
		path    = flag.String("o", "", "output file path (required)")
		sizeStr = flag.String("size", "64M", "size of the image (e.g., 64M, 1G)")
	)
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "ddgorescue-mkimage: -o is required")
		flag.Usage()
		os.Exit(1)
	}

	size, err := sizeparse.Parse(*sizeStr)
	if err != nil {
		log.Fatalf("invalid size %q: %v", *sizeStr, err)
	}

	f, err := os.OpenFile(*path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		log.Fatalf("creating %s: %v", *path, err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		log.Fatalf("sizing %s to %s: %v", *path, sizeparse.Format(size), err)
	}

	fmt.Printf("created %s: %s (%d bytes)\n", *path, sizeparse.Format(size), size)
}
