package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crynn/crynn/internal/cli/styles"
	"github.com/crynn/crynn/internal/logging"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the persisted session",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved tabs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := logging.WithContext(cmd.Context(), e.log)

			store, closeStore, err := openStore(ctx, e.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			state, err := store.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}

			renderer := styles.NewSessionRenderer(styles.DefaultTheme())
			fmt.Println(renderer.Render(state))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := logging.WithContext(cmd.Context(), e.log)

			store, closeStore, err := openStore(ctx, e.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(ctx); err != nil {
				return err
			}

			theme := styles.DefaultTheme()
			fmt.Println(theme.SuccessStyle.Render("Saved session deleted."))
			return nil
		},
	}

	sessionCmd.AddCommand(showCmd, clearCmd)
	return sessionCmd
}
