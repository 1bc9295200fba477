package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-catalog/internal/events"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
)

type scanResult struct {
	Root  string            `json:"root"`
	Stats indexer.ScanStats `json:"stats"`
	Error string            `json:"error,omitempty"`
}

func newScanCmd(opts *options) *cobra.Command {
	var (
		noFaces bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "scan [root...]",
		Short: "Scan directory trees into the catalog",
		Long: "Scan walks each root, extracts file facts, upserts catalog records and,\n" +
			"for images, detects and clusters faces. Without arguments the configured\n" +
			"AUTO_SCAN_PATHS are scanned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			roots := args
			if len(roots) == 0 {
				roots = cfg.AutoScanPaths
			}
			if len(roots) == 0 {
				return errors.New("no roots given and AUTO_SCAN_PATHS is empty")
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{noFaces: noFaces, workers: workers})
			if err != nil {
				return err
			}
			defer a.Close()

			sinks := indexer.MultiSink{}
			if cfg.NATSURL != "" {
				nc, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
				if err != nil {
					return err
				}
				defer nc.Close()
				sinks = append(sinks, nc)
			}

			var progress *progressLine
			if opts.format == formatText && isTerminal(os.Stderr) {
				progress = newProgressLine(os.Stderr)
				sinks = append(sinks, progress.sink)
			} else {
				sinks = append(sinks, indexer.LogSink{})
			}
			a.scanner.SetProgressSink(sinks)

			results := make([]scanResult, 0, len(roots))
			var failed bool
			for _, root := range roots {
				if progress != nil {
					progress.start()
				}
				stats, err := a.scanner.Scan(cmd.Context(), root)
				if progress != nil {
					progress.stop()
				}
				res := scanResult{Root: root, Stats: stats}
				if err != nil {
					res.Error = err.Error()
					failed = true
				}
				results = append(results, res)
				if cmd.Context().Err() != nil {
					break
				}
			}

			if opts.format == formatJSON {
				if err := printJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				printScanResults(cmd.OutOrStdout(), results)
			}
			if failed {
				return errors.New("one or more scans did not complete")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noFaces, "no-faces", false, "Skip face detection for this run")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Extraction workers (default: SCAN_WORKERS)")
	return cmd
}

func printScanResults(w io.Writer, results []scanResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tSCANNED\tADDED\tUPDATED\tERRORS\tRESULT")
	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Root, r.Stats.FilesScanned, r.Stats.FilesAdded, r.Stats.FilesUpdated, r.Stats.ErrorCount, status)
	}
	if err := tw.Flush(); err != nil {
		logging.Warn("Failed to write scan results: %v", err)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// progressLine redraws a single status line on a terminal from scan events.
type progressLine struct {
	out   io.Writer
	fd    int
	sink  *indexer.ChanSink
	done  chan struct{}
	wg    sync.WaitGroup
	width int
}

func newProgressLine(f *os.File) *progressLine {
	return &progressLine{
		out:  f,
		fd:   int(f.Fd()),
		sink: indexer.NewChanSink(64),
	}
}

func (p *progressLine) start() {
	p.width = 80
	if w, _, err := term.GetSize(p.fd); err == nil && w > 0 {
		p.width = w
	}
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.run()
}

func (p *progressLine) stop() {
	close(p.done)
	p.wg.Wait()
	fmt.Fprint(p.out, "\r"+strings.Repeat(" ", p.width-1)+"\r")
}

func (p *progressLine) run() {
	defer p.wg.Done()
	var total, faces int
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.sink.C:
			switch ev.Kind {
			case indexer.EventScanStarted:
				total = ev.Total
			case indexer.EventFacesDetected:
				faces += ev.Faces
				continue
			case indexer.EventScanCompleted:
				continue
			}
			p.draw(fmt.Sprintf("scanning %s  %d/%d files  %d errors  %d faces",
				ev.RootPath, ev.Processed, total, ev.Stats.ErrorCount, faces))
		}
	}
}

func (p *progressLine) draw(line string) {
	if limit := p.width - 1; len(line) > limit && limit > 3 {
		line = line[:limit-3] + "..."
	}
	fmt.Fprintf(p.out, "\r%-*s", p.width-1, line)
}
