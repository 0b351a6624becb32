package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"flatfs/internal/fs"
)

var unmountCmd = &cobra.Command{
	Use:     "unmount <mount-point>",
	Aliases: []string{"umount"},
	Short:   "Unmount a flatfs filesystem",
	Long: `Unmounts a flatfs filesystem. The serving process notices the unmount,
releases its session and exits. All file contents are discarded.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnmount,
}

func init() {
	rootCmd.AddCommand(unmountCmd)
}

func runUnmount(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve mount point: %w", err)
	}

	if err := fs.Unmount(target); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", target)
	return nil
}
