// Package main provides a content validation tool: it loads a content
// directory and reports authoring errors without starting a session.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kvance/estate/internal/game/world"
)

func main() {
	start := time.Now()

	dir := flag.String("content", "content", "path to content directory")
	flag.Parse()

	original, err := world.LoadFromDir(*dir)
	if err != nil {
		log.Fatalf("loading content: %v", err)
	}

	counts := map[world.Kind]int{}
	for _, e := range original {
		counts[e.Kind]++
	}

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout,
		"content ok: %d entities (%d rooms, %d people, %d mysteries) [%s]\n",
		len(original),
		counts[world.KindRoom], counts[world.KindPerson], counts[world.KindMystery],
		elapsed)
}
