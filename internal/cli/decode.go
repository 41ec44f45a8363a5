package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cheggaaa/pb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eunmann/xlog-decoder/internal/logctx"
	"github.com/eunmann/xlog-decoder/pkg/batch"
	"github.com/eunmann/xlog-decoder/pkg/humanfmt"
	"github.com/eunmann/xlog-decoder/pkg/memdiag"
	"github.com/eunmann/xlog-decoder/pkg/metrics"
	"github.com/eunmann/xlog-decoder/pkg/s3fetch"
)

func newDecodeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [flags] <path|zip|s3://bucket/key>...",
		Short: "Decode xlog files, archives and S3 objects into plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one input is required")
			}
			return runDecode(cmd, v, args)
		},
	}

	f := cmd.Flags()
	f.String("out-dir", "", "output directory (default: beside each input)")
	f.String("suffix", batch.DefaultSuffix, "suffix appended to output file names")
	f.Bool("uid-suffix", false, "insert _<uid> into output names when the log contains _uid=<digits>")
	f.String("compress", string(batch.CompressNone), "output compression: none or zstd")
	f.Int("concurrency", 1, "files decoded at once")
	f.String("mem-budget", "", "memory budget for concurrent decodes, e.g. 2GiB (default: 50% of RAM)")
	f.String("tmp-dir", "", "directory for extracted archives and downloads")
	f.Bool("keep-temp", false, "keep extracted archives and downloads")
	f.String("metrics-textfile", "", "write decode metrics in Prometheus textfile format")
	f.Bool("progress", false, "show a progress bar on stderr")
	_ = v.BindPFlags(f)

	return cmd
}

func runDecode(cmd *cobra.Command, v *viper.Viper, args []string) error {
	ctx := cmd.Context()

	compress, err := batch.ParseCompression(v.GetString("compress"))
	if err != nil {
		return err
	}

	var cliBudget, cfgBudget string
	if cmd.Flags().Changed("mem-budget") {
		cliBudget = v.GetString("mem-budget")
	} else if v.InConfig("mem-budget") {
		cfgBudget = v.GetString("mem-budget")
	}
	budget, err := determineMemoryBudget(cliBudget, cfgBudget)
	if err != nil {
		return err
	}
	log := logctx.FromContext(ctx)
	log.Debug().
		Str("mem_budget", humanfmt.Bytes(int64(budget.Total()))).
		Str("source", string(budget.Source())).
		Msg("memory budget")

	m := metrics.New()
	cfg := batch.Config{
		OutDir:      v.GetString("out-dir"),
		Suffix:      v.GetString("suffix"),
		UIDSuffix:   v.GetBool("uid-suffix"),
		Compress:    compress,
		Concurrency: v.GetInt("concurrency"),
		Budget:      budget,
		TmpDir:      v.GetString("tmp-dir"),
		KeepTemp:    v.GetBool("keep-temp"),
		Fetcher:     &lazyFetcher{},
		Metrics:     m,
	}

	resolved, err := batch.Resolve(ctx, args, cfg)
	if err != nil {
		return err
	}
	defer resolved.Cleanup(ctx)

	var bar *progressBar
	if v.GetBool("progress") {
		bar = newProgressBar(resolved.Inputs, cmd.ErrOrStderr())
		cfg.Progress = bar.update
	}

	diag := memdiag.NewTracker(memdiag.DefaultConfig(), budget)
	diag.Start(ctx)
	results, runErr := batch.Run(ctx, resolved.Inputs, cfg)
	diag.Stop()
	if bar != nil {
		bar.finish()
	}

	printSummary(cmd.OutOrStdout(), results)

	if path := v.GetString("metrics-textfile"); path != "" {
		if err := m.WriteTextfile(path); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func printSummary(w io.Writer, results []batch.FileResult) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: FAILED: %v\n", r.Input.Path, r.Err)
			continue
		}
		if r.Aborted && r.OutputPath == "" {
			fmt.Fprintf(w, "%s: aborted before decoding\n", r.Input.Path)
			continue
		}
		status := ""
		if r.Aborted {
			status = " (aborted)"
		}
		fmt.Fprintf(w, "%s -> %s: %s records, %d resyncs, %d sequence gaps, %s -> %s in %s%s\n",
			r.Input.Path, r.OutputPath,
			humanfmt.Count(int64(r.Stats.Records)),
			r.Stats.Resyncs, r.Stats.SequenceGaps,
			humanfmt.Bytes(r.Stats.BytesIn), humanfmt.Bytes(r.Stats.BytesOut),
			humanfmt.Duration(r.Duration), status)
	}
}

// lazyFetcher creates the S3 client on first use so that local-only runs
// never load AWS configuration.
type lazyFetcher struct {
	once   sync.Once
	client *s3fetch.Client
	err    error
}

func (l *lazyFetcher) Fetch(ctx context.Context, uri, destDir string) (string, *s3fetch.DownloadResult, error) {
	l.once.Do(func() {
		l.client, l.err = s3fetch.NewClient(ctx, s3fetch.DefaultDownloaderConfig())
	})
	if l.err != nil {
		return "", nil, l.err
	}
	return l.client.Fetch(ctx, uri, destDir)
}

// progressBar tracks decoded bytes across all inputs. Each input reports its
// own running total; only the delta is added to the shared bar.
type progressBar struct {
	bar  *pb.ProgressBar
	seen map[string]*atomic.Int64
}

func newProgressBar(inputs []batch.Input, w io.Writer) *progressBar {
	var total int64
	seen := make(map[string]*atomic.Int64, len(inputs))
	for _, in := range inputs {
		total += in.Size
		seen[in.Path] = new(atomic.Int64)
	}

	bar := pb.New64(total).SetUnits(pb.U_BYTES)
	bar.Output = w
	bar.ShowSpeed = true
	bar.Start()
	return &progressBar{bar: bar, seen: seen}
}

func (p *progressBar) update(in batch.Input, processed, _ int) {
	last, ok := p.seen[in.Path]
	if !ok {
		return
	}
	if d := int64(processed) - last.Swap(int64(processed)); d > 0 {
		p.bar.Add64(d)
	}
}

func (p *progressBar) finish() {
	p.bar.Finish()
}
