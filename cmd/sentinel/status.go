package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mason50x/sentinel/internal/config"
	"github.com/mason50x/sentinel/internal/tracker"
	"github.com/mason50x/sentinel/internal/version"
)

// statusCmd queries a running sentinel instance, the same way the
// extension does. An unreachable server is reported as inactive: consumers
// are expected to fail safe.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the activity status of a running sentinel server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		url := fmt.Sprintf("http://localhost:%d/status", cfg.Port)

		client := &http.Client{Timeout: 3 * time.Second}
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := client.Do(req)
		if err != nil {
			fmt.Println("unreachable (treat as inactive)")
			return nil
		}
		defer resp.Body.Close()

		var status tracker.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode status: %w", err)
		}

		if status.IsActive {
			fmt.Println("active")
		} else {
			fmt.Println("inactive")
		}
		if status.Session != nil {
			fmt.Printf("session: %s\n", status.Session.ID)
		}
		fmt.Printf("in-flight tasks: %d\n", status.ActiveTaskCount)
		if status.TimeSinceActivityMs != nil {
			fmt.Printf("time since activity: %s\n",
				(time.Duration(*status.TimeSinceActivityMs) * time.Millisecond).String())
		}

		return nil
	},
}
