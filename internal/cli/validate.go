package cli

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/JohnsonLy78/quadas-agent/internal/checklist"
	"github.com/JohnsonLy78/quadas-agent/internal/validate"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateSchemaPath string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <result.json>...",
	Short: "Check saved results against the result schema",
	Long: `Validate checks one or more result files against the result JSON Schema
and lists every violation found in each file.

Example:
  quadas-agent validate outputs/smith_2022_index_test.json
  quadas-agent validate outputs/*.json --schema schema/index_test_result.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "", "result JSON Schema file (default: embedded)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := checklist.SchemaBytes(validateSchemaPath)
	if err != nil {
		return err
	}
	schema, err := validate.LoadSchema(bytes.NewReader(data))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		_, err := validate.ValidateFile(path, schema)
		if err == nil {
			fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), path)
			continue
		}

		failed++
		fmt.Fprintf(out, "%s %s\n", color.RedString("✗"), path)

		var verr *validate.SchemaValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintf(out, "    %s\n", v)
			}
		} else {
			fmt.Fprintf(out, "    %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}
