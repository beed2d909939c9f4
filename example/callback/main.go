package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ghalamif/sensorboard/pkg/sensorboard"
)

func main() {
	board, err := sensorboard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(v sensorboard.View) error {
		fmt.Printf("%s records=%d errors=%d\n", v.Generated.Format(time.RFC3339), v.Total, v.Errors)
		keys := make([]string, 0, len(v.Summaries))
		for k := range v.Summaries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := v.Summaries[k]
			fmt.Printf("  %-16s last=%.2f min=%.2f max=%.2f mean=%.2f\n", k, s.Last, s.Min, s.Max, s.Mean)
		}
		return nil
	}

	if err := board.Run(ctx, sensorboard.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("session error: %v", err)
	}
}
