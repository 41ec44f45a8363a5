package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eunmann/xlog-decoder/pkg/decode"
	"github.com/eunmann/xlog-decoder/pkg/humanfmt"
	"github.com/eunmann/xlog-decoder/pkg/recordindex"
	"github.com/eunmann/xlog-decoder/pkg/source"
	"github.com/eunmann/xlog-decoder/pkg/xlog"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [--parquet path] <path|->",
		Short: "List the records of an xlog file without decoding payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], v.GetString("parquet"))
		},
	}
	cmd.Flags().String("parquet", "", "also write the record list as a parquet file")
	_ = v.BindPFlag("parquet", cmd.Flags().Lookup("parquet"))
	return cmd
}

func runInspect(cmd *cobra.Command, path, parquetPath string) error {
	src, err := openInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := decode.Scan(cmd.Context(), src.Bytes())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	renderRecords(w, res.Records)
	for _, d := range res.Diagnostics {
		fmt.Fprint(w, d.Text())
	}
	fmt.Fprintf(w, "%s records from offset %d, %d resyncs, %d sequence gaps, %s skipped\n",
		humanfmt.Count(int64(res.Stats.Records)), res.Start,
		res.Stats.Resyncs, res.Stats.SequenceGaps, humanfmt.Bytes(res.Stats.SkippedBytes))

	if parquetPath != "" {
		if err := recordindex.WriteFile(parquetPath, res.Records); err != nil {
			return err
		}
	}
	return nil
}

// openInput maps path, or reads all of in when path is "-".
func openInput(in io.Reader, path string) (*source.File, error) {
	if path != "-" {
		return source.Open(path)
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("%w: stdin: %w", xlog.ErrFileRead, err)
	}
	return source.FromBytes("stdin", data), nil
}

func renderRecords(w io.Writer, records []decode.RecordInfo) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Offset", "Kind", "Magic", "Seq", "Hours", "Header", "Payload", "Cipher"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoWrapText(false)

	for _, r := range records {
		table.Append([]string{
			strconv.Itoa(r.Offset),
			r.Kind,
			fmt.Sprintf("0x%02x", byte(r.Magic)),
			strconv.Itoa(int(r.Sequence)),
			fmt.Sprintf("%d-%d", r.BeginHour, r.EndHour),
			strconv.Itoa(r.HeaderLength),
			strconv.FormatUint(uint64(r.PayloadLength), 10),
			r.Cipher.String(),
		})
	}
	table.Render()
}
