package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newMethodsCmd(a *app) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List method names",
		Long: `List method names, one per line.

Without --url the built-in methods are listed. With --url the listing is
fetched from a running server's RPC endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var names []string
			if url == "" {
				srv, err := a.newServer()
				if err != nil {
					return err
				}
				names = srv.Methods()
			} else {
				var err error
				if names, err = fetchMethods(cmd, strings.TrimSuffix(url, "/")+"/methods"); err != nil {
					return err
				}
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "RPC endpoint of a running server")
	return cmd
}

func fetchMethods(cmd *cobra.Command, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decoding method list: %w", err)
	}
	return names, nil
}
