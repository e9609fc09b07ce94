package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	gojson "github.com/goccy/go-json"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/compression"
	"github.com/thebaptiste/pyodc/pkg/logger"
	"github.com/thebaptiste/pyodc/pkg/odc"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	viper.SetEnvPrefix("PYODC")
	viper.AutomaticEnv()
	viper.SetDefault("log_level", "info")
	viper.SetDefault("rows_per_frame", odc.DefaultRowsPerFrame)
	viper.SetDefault("compression", string(compression.Snappy))

	root := &cobra.Command{
		Use:   "pyodc",
		Short: "Encode, decode and inspect ODC observation frame files",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    viper.GetString("log_level"),
				Encoding: "console",
			})
		},
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(versionCmd(), lsCmd(), catCmd(), importCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pyodc %s\n", version)
		},
	}
}

// frameListing is the JSON shape of one line of ls output.
type frameListing struct {
	Index   int               `json:"index"`
	Offset  int64             `json:"offset"`
	Rows    int               `json:"rows"`
	Frames  int               `json:"frames"`
	Columns map[string]string `json:"columns"`
}

func lsCmd() *cobra.Command {
	var noAggregate, asJSON bool

	cmd := &cobra.Command{
		Use:   "ls <file>",
		Short: "List the frames of an ODC file without decoding payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := odc.InspectFile(args[0], !noAggregate)
			if err != nil {
				return err
			}

			if asJSON {
				enc := gojson.NewEncoder(os.Stdout)
				for i, f := range frames {
					listing := frameListing{
						Index:   i,
						Offset:  f.Offset,
						Rows:    f.Rows,
						Frames:  f.Frames,
						Columns: make(map[string]string, len(f.Columns)),
					}
					for _, c := range f.Columns {
						listing.Columns[c.Name] = c.Type.String()
					}
					if err := enc.Encode(listing); err != nil {
						return err
					}
				}
				return nil
			}

			for i, f := range frames {
				cols := make([]string, 0, len(f.Columns))
				for _, c := range f.Columns {
					cols = append(cols, fmt.Sprintf("%s:%s", c.Name, c.Type))
				}
				fmt.Printf("frame %d  offset=%d  rows=%d  frames=%d  [%s]\n",
					i, f.Offset, f.Rows, f.Frames, strings.Join(cols, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAggregate, "no-aggregate", false, "list physical frames without merging compatible runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit one JSON object per frame")
	return cmd
}

func catCmd() *cobra.Command {
	var columnsFlag string
	var noAggregate, single, asJSON bool

	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Decode an ODC file to CSV or JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &odc.ReadOptions{DisableAggregation: noAggregate}
			if columnsFlag != "" {
				opts.Columns = strings.Split(columnsFlag, ",")
			}

			if single {
				tbl, err := odc.ReadSingleFile(args[0], opts)
				if err != nil {
					return err
				}
				return emitTable(tbl, asJSON, true)
			}

			r, err := odc.OpenReader(args[0], opts)
			if err != nil {
				return err
			}
			defer r.Close()

			first := true
			for r.Scan() {
				if err := emitTable(r.Table(), asJSON, first); err != nil {
					return err
				}
				first = false
			}
			return r.Err()
		},
	}

	cmd.Flags().StringVar(&columnsFlag, "columns", "", "comma-separated column projection")
	cmd.Flags().BoolVar(&noAggregate, "no-aggregate", false, "decode physical frames without merging")
	cmd.Flags().BoolVar(&single, "single", false, "concatenate everything into one table before printing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON lines instead of CSV")
	return cmd
}

func emitTable(tbl *columnar.Table, asJSON, withHeader bool) error {
	names := tbl.Names()

	if asJSON {
		enc := gojson.NewEncoder(os.Stdout)
		for i := 0; i < tbl.NumRows(); i++ {
			row := make(map[string]interface{}, len(names))
			for _, s := range tbl.Columns() {
				row[s.Name()] = s.Value(i)
			}
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	w := csv.NewWriter(os.Stdout)
	if withHeader {
		if err := w.Write(names); err != nil {
			return err
		}
	}
	record := make([]string, len(names))
	for i := 0; i < tbl.NumRows(); i++ {
		for j, s := range tbl.Columns() {
			v := s.Value(i)
			if v == nil {
				record[j] = ""
				continue
			}
			record[j] = fmt.Sprintf("%v", v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func importCmd() *cobra.Command {
	var typesFlag, compressionFlag string
	var rowsPerFrame int

	cmd := &cobra.Command{
		Use:   "import <input.csv> <output.odc>",
		Short: "Encode a CSV file into the ODC frame format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := readCSV(args[0])
			if err != nil {
				return err
			}

			opts := &odc.EncodeOptions{
				RowsPerFrame: rowsPerFrame,
			}
			alg, err := compression.ParseAlgorithm(compressionFlag)
			if err != nil {
				return err
			}
			opts.Compression = alg

			if typesFlag != "" {
				opts.Types = make(map[string]odc.DataType)
				for _, pair := range strings.Split(typesFlag, ",") {
					name, typeName, ok := strings.Cut(pair, "=")
					if !ok {
						return fmt.Errorf("bad --types entry %q, want name=TYPE", pair)
					}
					dt, err := odc.ParseDataType(typeName)
					if err != nil {
						return err
					}
					opts.Types[name] = dt
				}
			}

			if err := odc.EncodeFile(tbl, args[1], opts); err != nil {
				return err
			}
			logger.Info("encoded",
				zap.String("output", args[1]),
				zap.Int("rows", tbl.NumRows()),
				zap.Int("columns", tbl.NumColumns()))
			return nil
		},
	}

	cmd.Flags().IntVar(&rowsPerFrame, "rows-per-frame", viper.GetInt("rows_per_frame"), "maximum rows per physical frame")
	cmd.Flags().StringVar(&typesFlag, "types", "", "forced datatypes, e.g. seqno=INTEGER,temp=DOUBLE")
	cmd.Flags().StringVar(&compressionFlag, "compression", viper.GetString("compression"), "payload compression (none, snappy, lz4, zstd, s2)")
	return cmd
}

// readCSV loads a CSV file with a header row into a table, inferring int,
// float or string per column. Empty cells become nulls.
func readCSV(path string) (*columnar.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cells := make([][]string, len(header))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, v := range record {
			cells[i] = append(cells[i], v)
		}
	}

	series := make([]columnar.Series, 0, len(header))
	for i, name := range header {
		s, err := inferSeries(name, cells[i])
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return columnar.NewTable(series...)
}

func inferSeries(name string, raw []string) (columnar.Series, error) {
	null := make([]bool, len(raw))

	ints := make([]int64, len(raw))
	isInt := true
	for i, v := range raw {
		if v == "" {
			null[i] = true
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			isInt = false
			break
		}
		ints[i] = n
	}
	if isInt {
		return columnar.NewIntSeries(name, ints, null)
	}

	floats := make([]float64, len(raw))
	isFloat := true
	for i, v := range raw {
		if v == "" {
			// The integer pass stops at its first non-integer cell, so empty
			// cells past that point are only marked here.
			null[i] = true
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			isFloat = false
			break
		}
		floats[i] = x
	}
	if isFloat {
		return columnar.NewFloatSeries(name, floats, null)
	}

	return columnar.NewStringSeries(name, raw, nil)
}
