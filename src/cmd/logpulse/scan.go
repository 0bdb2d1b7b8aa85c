// FILE: src/cmd/logpulse/scan.go
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"logpulse/src/internal/discovery"

	"github.com/pterm/pterm"
)

type scanCommand struct{}

func (c *scanCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	shallow := fs.Bool("shallow", false, "Scan well-known locations only, skip the recursive walk")
	quiet := fs.Bool("quiet", false, "Suppress operator output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, svc, err := loadRuntime(*quiet)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer shutdownLogger()

	found, problems := svc.Scan(context.Background(), *shallow)

	if output.IsQuiet() {
		return nil
	}

	if len(found) == 0 {
		pterm.Warning.Println("No log files found")
		return nil
	}

	// Group per category so the operator sees the shape of the host,
	// not a thousand-row dump.
	byCategory := make(map[string][]discovery.Found)
	for _, f := range found {
		byCategory[f.Class.Category] = append(byCategory[f.Class.Category], f)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	data := pterm.TableData{{"Category", "Subcategory", "Path", "Size", "Archive"}}
	for _, cat := range categories {
		files := byCategory[cat]
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		for _, f := range files {
			archive := ""
			if f.Archive {
				archive = "yes"
			}
			data = append(data, []string{cat, f.Class.Subcategory, f.Path, formatSize(f.Size), archive})
		}
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Success.Printfln("Found %d log files in %d categories", len(found), len(categories))

	for _, p := range problems {
		if p.Corrupt {
			pterm.Warning.Printfln("Corrupt archive skipped: %s", p.Path)
		} else {
			pterm.Warning.Printfln("Unreadable: %s (%v)", p.Path, p.Err)
		}
	}
	return nil
}

func (c *scanCommand) Description() string {
	return "Discover log files without watching them"
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
