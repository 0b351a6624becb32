package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flatfs/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List live flatfs mounts",
	Long:  `Lists the flatfs filesystems currently served on this machine, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("failed to open session registry: %w", err)
	}

	records, err := sessions.List()
	if err != nil {
		return err
	}

	printStatus(cmd.OutOrStdout(), records, time.Now())
	return nil
}

func printStatus(w io.Writer, records []session.Record, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, color.YellowString("No flatfs mounts"))
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	for _, r := range records {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("●"), bold(r.MountPoint))
		fmt.Fprintf(w, "    fs name: %s\n", r.FSName)
		fmt.Fprintf(w, "    pid:     %d\n", r.PID)
		fmt.Fprintf(w, "    session: %s\n", r.ID)
		fmt.Fprintf(w, "    started: %s (%s)\n",
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.StartedAt.Local().Format(time.RFC3339))
	}
}
