package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reqgate/reqgate/internal/normalize"
	"github.com/reqgate/reqgate/internal/reqif"
)

var (
	parseBaselineID      string
	parseBaselineVersion string
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseBaselineID, "baseline-id", "default", "Policy baseline id")
	parseCmd.Flags().StringVar(&parseBaselineVersion, "baseline-version", "1.0.0", "Policy baseline version")
}

var parseCmd = &cobra.Command{
	Use:   "parse <reqif-file>",
	Short: "Parse a ReqIF document into canonical requirement records",
	Long:  "Parses the XML, derives stable uids, and prints the normalized records as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %q: %w", args[0], err)
	}

	doc, err := reqif.Parse(data)
	if err != nil {
		return err
	}

	records, err := normalize.Normalize(doc, parseBaselineID, parseBaselineVersion)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
