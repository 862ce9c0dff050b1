package main

import (
	"fmt"
	"os"

	"github.com/randomouscrap98/fwcutter/firmware"
)

func main() {
	// Check if a filename is provided as a command-line argument
	if len(os.Args) != 2 {
		fmt.Println("Usage: go run main.go <filename>")
		return
	}

	filename := os.Args[1]
	image, err := firmware.MapImage(filename)
	if err != nil {
		fmt.Println("Error opening file:", err)
		return
	}
	defer image.Close()

	// Every "MPFS" in the image is a candidate header
	pattern := firmware.NewPattern([]byte(firmware.MpfsSignature), 0, 0)
	found := 0
	for i, b := range image.Bytes() {
		n, ok := pattern.Push(b)
		if !ok {
			continue
		}
		offset := int64(i + 1 - n)
		index, err := firmware.ReadMpfsIndex(image.Reader(offset), -1)
		if err != nil {
			fmt.Printf("%#08x: not a usable header: %s\n", offset, err)
			continue
		}
		found++
		fmt.Printf("%#08x:\n%s", offset, index.Header)
		for _, f := range index.Files {
			fmt.Print(f)
		}
	}

	fmt.Printf("Found %d MPFS containers in %s\n", found, filename)
}
