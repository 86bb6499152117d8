package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunCmd creates the run command
func RunCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the shift manager: reminders, weekly generation and daily posting",
		Long: `Run keeps the shift manager in the foreground. It re-arms reminders and
backup alerts for every live shift, generates the week's shifts, posts them at
the configured hour and sends alerts for missing roles. Stop it with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("🚀 Shift manager running, press Ctrl+C to stop")
			if err := app.Service.Run(ctx); err != nil {
				return err
			}
			fmt.Println("👋 Shift manager stopped")
			return nil
		},
	}
}
