package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/version"
)

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hdaget %s\n", version.Version)
			fmt.Printf("  Built:      %s\n", version.BuildTime)
			fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Printf("  User-Agent: %s\n", version.UserAgent())
		},
	}
}
