package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crynn/crynn/internal/cli/styles"
	"github.com/crynn/crynn/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(_ *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}

			theme := styles.DefaultTheme()
			dir, _ := config.ConfigDir()
			fmt.Println(theme.Subtle.Render("# " + dir))

			data, err := config.EncodeTOML(e.cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := config.SchemaJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	configCmd.AddCommand(showCmd, schemaCmd)
	return configCmd
}
