package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/randomouscrap98/fwcutter/firmware"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run main.go <outfile> <minrun> <name=path>...")
		return
	}

	// Get the run length
	minRun, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Println("Error: can't parse minrun: ", err)
		return
	}

	// Read every file that goes in
	entries := make([]firmware.ImageEntry, 0, len(os.Args)-3)
	for _, arg := range os.Args[3:] {
		name, path, found := strings.Cut(arg, "=")
		if !found {
			fmt.Printf("Error: expected name=path, got %s\n", arg)
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Println("Error reading file:", err)
			return
		}
		entries = append(entries, firmware.ImageEntry{Name: name, Data: data})
	}

	config := firmware.DefaultCarveConfig()
	config.MinRun = minRun
	// Leave room for the longest name
	for _, e := range entries {
		config.Lookback = max(config.Lookback, len(e.Name)+1)
	}

	filename := os.Args[1]
	file, err := os.Create(filename)
	if err != nil {
		fmt.Println("Error opening file:", err)
		return
	}
	defer file.Close()

	err = firmware.BuildImage(file, nil, entries, config, 0)
	if err != nil {
		fmt.Println("Error writing image: ", err)
		return
	}

	fmt.Printf("Wrote %d files to %s (carve with --min-run %d --lookback %d)\n",
		len(entries), filename, minRun, config.Lookback)
}
