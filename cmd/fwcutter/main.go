package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/randomouscrap98/fwcutter/firmware"
)

const (
	AppVersion = "0.2.0"
)

// Quick way to fail on error, since most commands are "doing" something on
// behalf of something else.
func fatalIfErr(subject string, doing string, err error) {
	if err != nil {
		log.Fatalf("%s - Couldn't %s: %s", subject, doing, err)
	}
}

func mustMap(fp string) *firmware.MappedImage {
	image, err := firmware.MapImage(fp)
	fatalIfErr(fp, "map image", err)
	log.Printf("Mapped %s (%s)\n", fp, firmware.FormatSize(image.Len()))
	return image
}

func loadConfig(fp string) *firmware.Config {
	if fp == "" {
		return &firmware.Config{}
	}
	config, err := firmware.LoadConfig(fp)
	fatalIfErr(fp, "load config", err)
	return config
}

// **********************************
// *          CARVE COMMAND         *
// **********************************

type CarveCmd struct {
	Image    string `arg:"" type:"existingfile" help:"The firmware image to cut apart"`
	Outdir   string `type:"path" short:"o" help:"Where carved files go (default ${defaultoutput})"`
	Config   string `type:"path" short:"c" help:"TOML file with [carve] settings"`
	Marker   string `help:"Separator byte(s) as hex (default 00)"`
	MinRun   int    `help:"Separators in a row that make a file boundary (default ${defaultminrun})"`
	Lookback int    `help:"Bytes of context kept to find names in (default ${defaultlookback})"`
	Reserve  int    `help:"Bytes to reserve up front for one file (default 1GiB)"`
	Hex      bool   `help:"Write carved files as Intel HEX"`
}

func (c *CarveCmd) Run() error {
	section := loadConfig(c.Config).Carve
	if section.Reserve == 0 {
		section.Reserve = firmware.DefaultReserve
	}
	section = section.Merge(firmware.CarveSection{
		Marker:   c.Marker,
		MinRun:   c.MinRun,
		Lookback: c.Lookback,
		Output:   c.Outdir,
		Reserve:  c.Reserve,
		Hex:      c.Hex,
	})
	config, err := section.CarveConfig()
	fatalIfErr("carve", "configure", err)

	image := mustMap(c.Image)
	defer image.Close()
	result, err := firmware.Carve(image.Bytes(), config)
	fatalIfErr(c.Image, "carve", err)
	log.Printf("Carved %d files into %s (%d boundaries without a name, %s skipped)\n",
		len(result.Files), config.OutputDir, len(result.Failures), firmware.FormatSize(int64(result.Skipped)))
	PrintJson(result)
	return nil
}

// **********************************
// *          SCAN COMMAND          *
// **********************************

type ScanCmd struct {
	Image  string `arg:"" type:"existingfile" help:"The firmware image to scan"`
	Config string `type:"path" short:"c" help:"TOML file with [[signature]] entries"`
	Script string `type:"path" short:"s" help:"Lua script defining signatures (overrides config)"`
	Json   bool   `help:"Print hits as json instead of lines"`
}

func (c *ScanCmd) Run() error {
	var signatures []firmware.Signature
	var err error
	if c.Script != "" {
		script, err := os.ReadFile(c.Script)
		fatalIfErr(c.Script, "read script", err)
		signatures, err = firmware.RunLuaSignatureScript(string(script))
		fatalIfErr(c.Script, "run signature script", err)
	} else {
		signatures, err = loadConfig(c.Config).ScanSignatures()
		fatalIfErr("scan", "load signatures", err)
	}
	scanner, err := firmware.NewScanner(signatures)
	fatalIfErr("scan", "set up scanner", err)
	log.Printf("Scanning for %d signatures\n", len(signatures))

	image := mustMap(c.Image)
	defer image.Close()
	hits := make([]*firmware.ScanHit, 0)
	err = scanner.Scan(image.Bytes(), func(hit *firmware.ScanHit) error {
		if c.Json {
			hits = append(hits, hit)
		} else {
			fmt.Println(hit.Line())
		}
		return nil
	})
	fatalIfErr(c.Image, "scan", err)
	if c.Json {
		PrintJson(hits)
	}
	return nil
}

// **********************************
// *          MPFS COMMAND          *
// **********************************

type MpfsCmd struct {
	Image     string `arg:"" type:"existingfile" help:"The image holding an MPFS container"`
	At        int64  `default:"0" help:"Offset of the MPFS header in the image"`
	EntriesAt int64  `default:"-1" help:"Offset of the file headers past the MPFS header (default skips the hash table)"`
}

func (c *MpfsCmd) Run() error {
	image := mustMap(c.Image)
	defer image.Close()
	index, err := firmware.ReadMpfsIndex(image.Reader(c.At), c.EntriesAt)
	fatalIfErr(c.Image, "read mpfs index", err)
	if !index.Header.HasSignature() {
		log.Printf("WARN: signature at %#x is %q, not %q\n", c.At, index.Header.Signature, firmware.MpfsSignature)
	}
	log.Printf("MPFS %s with %d entries\n", index.Header.Version(), index.Header.Entries)
	PrintJson(index)
	return nil
}

var cli struct {
	Carve   CarveCmd         `cmd:"" help:"Cut every named file out of a firmware image"`
	Scan    ScanCmd          `cmd:"" help:"Report where known signatures show up in an image"`
	Mpfs    MpfsCmd          `cmd:"" help:"Decode an MPFS container header and its file index"`
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `help:"Log debug details from carving and scanning"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("fwcutter"),
		kong.ShortUsageOnError(),
		kong.Description("Tools for cutting apart concatenated firmware images"),
		kong.Vars{
			"version":         AppVersion,
			"defaultoutput":   firmware.DefaultExtractPath,
			"defaultminrun":   fmt.Sprint(firmware.DefaultMinRun),
			"defaultlookback": fmt.Sprint(firmware.DefaultLookback),
		},
	)
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
