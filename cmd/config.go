package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-dedupe/internal/dedupe"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective dedupe settings as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		overridePath, _ := cmd.Flags().GetString("override")
		dc := cfg.Dedupe

		override, err := loadOverride(overridePath)
		if err != nil {
			return err
		}
		if override != nil {
			dc = override.Apply(dc)
		}
		if err := dedupe.ValidateConfig(dc); err != nil {
			return eris.Wrap(err, "config show")
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(map[string]any{"dedupe": dc, "oracle": cfg.Oracle})
	},
}

func init() {
	configShowCmd.Flags().String("override", "", "YAML override file to merge before printing")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
