package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cdrkit/internal/archive"
	"cdrkit/internal/config"
	"cdrkit/internal/mdrm"
	"cdrkit/internal/storage"
	"cdrkit/internal/taxonomy"
	"cdrkit/internal/ubpr"
	"cdrkit/internal/xport"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:     "cdrkit",
		Short:   "Converters for FFIEC and Federal Reserve regulatory data",
		Version: version,
	}
	cfgPath string

	taxonomyOut string
	taxonomyDB  string
	xportOut    string
	mdrmOut     string
	ubprOut     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to the YAML config file")

	taxonomyCmd.Flags().StringVarP(&taxonomyOut, "output", "o", "", "Output JSON path (default <form>_<quarter>.json)")
	taxonomyCmd.Flags().StringVar(&taxonomyDB, "db", "", "Also persist the taxonomy graph into this SQLite database")
	xportCmd.Flags().StringVarP(&xportOut, "output", "o", "", "Output JSON path (default <input>_<unixtime>.json)")
	mdrmCmd.Flags().StringVarP(&mdrmOut, "output", "o", "", "Output JSON path (default mdrm.json)")
	ubprCmd.Flags().StringVarP(&ubprOut, "output", "o", "", "Output JSON path (default ubpr.json)")

	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(xportCmd)
	rootCmd.AddCommand(mdrmCmd)
	rootCmd.AddCommand(ubprCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy [bundle.zip]",
	Short: "Convert a CDR taxonomy XBRL bundle to hierarchical JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		bundlePath := args[0]

		fmt.Println("Loading bundle:", bundlePath)
		doc, g, err := taxonomy.NewProcessor(cfg).Process(bundlePath)
		if err != nil {
			log.Fatalf("Conversion failed: %v", err)
		}
		fmt.Printf("Built hierarchy for form %s, quarter %s (%d fields).\n",
			doc.FormNumber, doc.Quarter, len(doc.Data))

		if taxonomyDB != "" {
			store, err := storage.NewSQLiteStore(taxonomyDB)
			if err != nil {
				log.Fatalf("Failed to open database: %v", err)
			}
			defer store.Close()
			if err := store.SaveTaxonomy(context.Background(), g, doc); err != nil {
				log.Fatalf("Failed to save taxonomy: %v", err)
			}
			fmt.Println("Saved taxonomy graph to database:", taxonomyDB)
		}

		out := taxonomyOut
		if out == "" {
			out = doc.FormNumber + "_" + doc.Quarter + ".json"
		}
		if err := writeJSON(out, doc); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Println("Wrote", out)
	},
}

var xportCmd = &cobra.Command{
	Use:   "xport [file.zip|file.xpt]",
	Short: "Convert a SAS XPORT statistical file to JSON observations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		inputPath := args[0]

		fmt.Println("Processing file:", inputPath)
		data, err := readXportInput(inputPath)
		if err != nil {
			log.Fatalf("Failed to read input: %v", err)
		}

		file, err := xport.Read(data, cfg.Xport.Encodings)
		if err != nil {
			log.Fatalf("Decode failed: %v", err)
		}
		fmt.Printf("Decoded dataset %s: %d variables, %d observations.\n",
			file.DatasetName, len(file.Variables), len(file.Rows))

		obs, err := xport.Convert(file)
		if err != nil {
			log.Fatalf("Conversion failed: %v", err)
		}

		out := xportOut
		if out == "" {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			out = base + "_" + strconv.FormatInt(time.Now().Unix(), 10) + ".json"
		}
		if err := writeJSON(out, obs); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Wrote %d observations to %s\n", len(obs), out)
	},
}

var mdrmCmd = &cobra.Command{
	Use:   "mdrm [path-or-url]",
	Short: "Convert the Federal Reserve MDRM data dictionary to JSON",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		source := mdrm.DefaultSource
		if len(args) > 0 {
			source = args[0]
		}

		fmt.Println("Fetching dictionary:", source)
		client := &http.Client{Timeout: time.Duration(cfg.MDRM.HTTPTimeout)}
		data, err := mdrm.Fetch(context.Background(), client, source)
		if err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}

		records, err := mdrm.Convert(source, data)
		if err != nil {
			log.Fatalf("Conversion failed: %v", err)
		}

		out := mdrmOut
		if out == "" {
			out = "mdrm.json"
		}
		if err := writeJSON(out, records); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Wrote %d dictionary records to %s\n", len(records), out)
	},
}

var ubprCmd = &cobra.Command{
	Use:   "ubpr [path-or-url]",
	Short: "Parse the FFIEC UBPR technical manual PDF into concept records",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		source := ubpr.DefaultSource
		if len(args) > 0 {
			source = args[0]
		}

		fmt.Println("Loading manual:", source)
		client := &http.Client{Timeout: time.Duration(cfg.UBPR.HTTPTimeout)}
		spans, err := ubpr.Load(context.Background(), client, source)
		if err != nil {
			log.Fatalf("Load failed: %v", err)
		}

		records := ubpr.Parse(spans)
		if len(records) == 0 {
			log.Fatalf("No concept records found in %s", source)
		}

		out := ubprOut
		if out == "" {
			out = "ubpr.json"
		}
		if err := writeJSON(out, records); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Wrote %d concept records to %s\n", len(records), out)
	},
}

// readXportInput accepts a bare .xpt file or a ZIP holding one; the first
// .xpt member of a ZIP wins.
func readXportInput(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		bundle, err := archive.Open(path, ".xpt")
		if err != nil {
			return nil, err
		}
		defer bundle.Close()
		names := bundle.Names()
		fmt.Printf("Found %d xpt files in zip file, processing %s\n", len(names), names[0])
		return bundle.Read(names[0])
	}
	return os.ReadFile(path)
}
