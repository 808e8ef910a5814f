package main

import (
	"DDoSpectra/internal/engine/impl/series"
	"DDoSpectra/internal/model"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <gob_file> [extended]")
		os.Exit(1)
	}
	gobFile := os.Args[1]
	extended := len(os.Args) > 2 && os.Args[2] == "extended"

	file, err := os.Open(gobFile)
	if err != nil {
		log.Fatalf("Unable to open file: %v", err)
	}
	defer file.Close()

	s, err := series.ReadGob(file)
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	first, last, _ := s.IndexRange()
	fmt.Printf("Decoded series %q: delta=%g windows=%d index=[%d,%d]\n", s.Source, s.Delta, s.Len(), first, last)
	columns := model.WindowColumns(extended)
	for _, w := range s.Windows {
		fmt.Printf("%g", w.WindowStart)
		for _, col := range columns {
			v, _ := w.Value(col)
			fmt.Printf("\t%s=%g", col, v)
		}
		fmt.Println()
	}
}
