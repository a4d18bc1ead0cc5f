package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Blacklist and whitelist membership lives in the running daemon, so these
// commands talk to its HTTP API rather than touching state directly.

var listServer string

func init() {
	rootCmd.AddCommand(blacklistCmd)
	rootCmd.AddCommand(whitelistCmd)

	for _, c := range []*cobra.Command{blacklistCmd, whitelistCmd} {
		c.PersistentFlags().StringVar(&listServer, "server", "http://127.0.0.1:8547", "Daemon base URL")
	}

	blacklistCmd.AddCommand(listSubcommands("blacklist")...)
	whitelistCmd.AddCommand(listSubcommands("whitelist")...)
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the blocked address list",
	Long:  "Addresses on the blacklist are blocked unconditionally.",
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the trusted address list",
	Long:  "Addresses on the whitelist receive a scoring discount.",
}

func listSubcommands(kind string) []*cobra.Command {
	add := &cobra.Command{
		Use:   "add <address>",
		Short: fmt.Sprintf("Add an address to the %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRequest(http.MethodPost, kind+"/"+args[0])
		},
	}
	remove := &cobra.Command{
		Use:   "remove <address>",
		Short: fmt.Sprintf("Remove an address from the %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRequest(http.MethodDelete, kind+"/"+args[0])
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("Show the %s", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRequest(http.MethodGet, kind)
		},
	}
	return []*cobra.Command{add, remove, list}
}

// listRequest performs one API call and prints the JSON response.
func listRequest(method, path string) error {
	url := strings.TrimRight(listServer, "/") + "/api/v1/" + path
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", listServer, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %d: %v", resp.StatusCode, body["error"])
	}

	out, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println(string(out))
	return nil
}
