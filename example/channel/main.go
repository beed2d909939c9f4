package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/sensorboard"
)

func main() {
	board, err := sensorboard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer, frames, closeFrames := sensorboard.NewChannelRenderer("fanout", 4)
	defer closeFrames()

	go tableWorker("table", frames)

	if err := board.Run(ctx, sensorboard.StreamOutRenderer(renderer)); err != nil {
		log.Fatalf("session error: %v", err)
	}
}

func tableWorker(name string, frames <-chan sensorboard.View) {
	for v := range frames {
		fmt.Printf("[%s] %d records at %s\n", name, v.Total, time.Now().Format(time.RFC3339))
		fmt.Println(v.Columns)
		for _, row := range v.Rows {
			fmt.Println(row.Seq, row.Source, row.Cells)
		}
	}
}
