package main

import (
	"cratedig/cmd"
	"cratedig/config"
	"cratedig/services"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

func main() {
	asciiArt := `
                 _           _ _
  ___ _ __ __ _| |_ ___  __| (_) __ _
 / __| '__/ _` + "`" + ` | __/ _ \/ _` + "`" + ` | |/ _` + "`" + ` |
| (__| | | (_| | ||  __/ (_| | | (_| |
 \___|_|  \__,_|\__\___|\__,_|_|\__, |
                                |___/
`

	var (
		archivePath string
		list        bool
		entry       string
		duration    bool
		metadata    bool
		extract     bool
		out         string
		server      bool
		port        int
		clearCache  bool
		cacheInfo   bool
	)

	flag.StringVar(&archivePath, "archive", "", "Path to a ZIP archive to load")
	flag.BoolVar(&list, "list", false, "List the archive's audio entries")
	flag.StringVar(&entry, "entry", "", "Entry to operate on (with -duration, -metadata or -extract)")
	flag.BoolVar(&duration, "duration", false, "Print the entry's duration")
	flag.BoolVar(&metadata, "metadata", false, "Print the entry's full metadata")
	flag.BoolVar(&extract, "extract", false, "Extract the entry")
	flag.StringVar(&out, "out", "", "Output directory for extraction (default: configured or temp)")
	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.BoolVar(&clearCache, "clear-cache", false, "Remove all cached archive metadata")
	flag.BoolVar(&cacheInfo, "cache-info", false, "Print cache diagnostics")
	flag.Parse()

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(port)
		return
	}

	cache := services.NewMetadataCache(config.GetCacheLocation(), os.Getenv("CRATEDIG_DEBUG") != "")

	if clearCache {
		cache.ClearAll()
		fmt.Println("Cache cleared.")
		return
	}

	if cacheInfo {
		archives := cache.ListCachedArchives()
		fmt.Printf("Cache location: %s\n", config.GetCacheLocation())
		fmt.Printf("Size on disk:   %d bytes\n", cache.SizeOnDisk())
		fmt.Printf("Cached archives (%d):\n", len(archives))
		for _, a := range archives {
			fmt.Printf("  %s\n", a)
		}
		return
	}

	if archivePath == "" {
		flag.Usage()
		return
	}

	fmt.Print(asciiArt)

	archive := services.NewArchiveService(cache, services.NewTagProbe())
	defer archive.Cleanup()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Loading archive"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	archive.SetProgressCallback(func(status string, percent int) {
		bar.Describe(status)
		bar.Set(percent)
	})

	stats, err := archive.Open(archivePath)
	if err != nil {
		log.Fatalf("Cannot open archive %s: %s", archivePath, err)
	}
	bar.Finish()
	archive.SetProgressCallback(nil)

	source := "scan"
	if stats.UsedCache {
		source = "cache"
	}
	fmt.Printf("Loaded %s: %d audio files in %s (%s)\n",
		archivePath, stats.AudioCount, stats.TotalTime.Round(time.Millisecond), source)

	if list {
		entries, err := archive.ListAudioEntries(archivePath)
		if err != nil {
			log.Fatalf("Cannot list entries: %s", err)
		}
		for _, name := range entries {
			fmt.Println(name)
		}
	}

	if entry != "" {
		runEntryCommands(archive, archivePath, entry, duration, metadata, extract, out)
	}
}

// runEntryCommands handles the per-entry CLI operations
func runEntryCommands(archive services.ArchiveService, archivePath, entry string, duration, metadata, extract bool, out string) {
	if duration {
		if ms, ok := archive.Duration(archivePath, entry); ok {
			fmt.Printf("%s: %s\n", entry, formatDuration(ms))
		} else {
			fmt.Printf("%s: duration unknown\n", entry)
		}
	}

	if metadata {
		full, ok := archive.DetailedMetadata(archivePath, entry)
		if !ok {
			fmt.Printf("%s: no metadata could be extracted\n", entry)
		} else {
			fmt.Printf("%s:\n", entry)
			fmt.Printf("  format:      %s\n", full.Format)
			fmt.Printf("  duration:    %s\n", formatDuration(full.DurationMs))
			if full.SampleRate > 0 {
				fmt.Printf("  sample rate: %d Hz\n", full.SampleRate)
			}
			if full.Channels > 0 {
				fmt.Printf("  channels:    %d\n", full.Channels)
			}
			if full.BitDepth > 0 {
				fmt.Printf("  bit depth:   %d\n", full.BitDepth)
			}
			if full.Bitrate > 0 {
				fmt.Printf("  bitrate:     %d kbps\n", full.Bitrate)
			}
			if full.Title != "" {
				fmt.Printf("  title:       %s\n", full.Title)
			}
			if full.Artist != "" {
				fmt.Printf("  artist:      %s\n", full.Artist)
			}
			if full.Album != "" {
				fmt.Printf("  album:       %s\n", full.Album)
			}
		}
	}

	if extract {
		if out == "" {
			out = config.GetExtractLocation()
		}
		outPath, err := archive.ExtractEntry(archivePath, entry, out)
		if err != nil {
			log.Fatalf("Cannot extract %s: %s", entry, err)
		}
		fmt.Printf("Extracted to %s\n", outPath)
	}
}

// formatDuration renders milliseconds as m:ss
func formatDuration(ms int64) string {
	totalSeconds := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
