package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vatojuan/MonitorNetwork/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Query the running monitor360 daemon over its control socket and display worker counts, active WireGuard tunnels, pooled RouterOS sessions and connected subscribers.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := control.FetchStatus(control.ResolveSocketPath())
	if err != nil {
		return fmt.Errorf("is monitor360 running? %w", err)
	}

	fmt.Fprintf(os.Stdout, "Uptime:       %s\n", formatDuration(time.Duration(status.UptimeSeconds*float64(time.Second))))
	fmt.Fprintf(os.Stdout, "Workers:      %d\n", status.Workers)
	fmt.Fprintf(os.Stdout, "Sessions:     %d\n", status.PooledSessions)
	fmt.Fprintf(os.Stdout, "Subscribers:  %d\n", status.Subscribers)
	fmt.Println()

	if len(status.Tunnels) == 0 {
		fmt.Println("No WireGuard tunnels.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tINTERFACE\tSTATE\tREFS")
	for _, t := range status.Tunnels {
		state := "down"
		if t.Up {
			state = "up"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", t.ProfileID, t.Iface, state, t.Refcount)
	}
	w.Flush()

	return nil
}

// formatDuration formats a duration into a human-readable string like "2h15m" or "45s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
