package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reqgate/reqgate/internal/integrity"
	"github.com/reqgate/reqgate/internal/normalize"
	"github.com/reqgate/reqgate/internal/reqif"
)

var (
	validateMode            string
	validateBaselineID      string
	validateBaselineVersion string
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateMode, "mode", "basic", "Validation mode: basic or strict")
	validateCmd.Flags().StringVar(&validateBaselineID, "baseline-id", "default", "Policy baseline id")
	validateCmd.Flags().StringVar(&validateBaselineVersion, "baseline-version", "1.0.0", "Policy baseline version")
}

var validateCmd = &cobra.Command{
	Use:   "validate <reqif-file>",
	Short: "Run integrity validation over a ReqIF document",
	Long:  "Parses and normalizes the document, then prints the integrity report.\nExits 0 if valid, 1 if the report contains errors.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %q: %w", args[0], err)
	}

	doc, err := reqif.Parse(data)
	if err != nil {
		return err
	}
	records, err := normalize.Normalize(doc, validateBaselineID, validateBaselineVersion)
	if err != nil {
		return err
	}

	maps, err := integrity.FromRequirements(records)
	if err != nil {
		return err
	}
	report, err := integrity.Check(maps, integrity.Mode(validateMode))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !report.Valid {
		os.Exit(1)
	}
	return nil
}
