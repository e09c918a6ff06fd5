// Package main is configdctl, a thin command-line client for a running
// configd server. Every command maps onto one HTTP call; payloads are
// passed as raw JSON arguments and responses are printed verbatim.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	sourceHeader   = "X-Configd-Source"
	instanceHeader = "X-Configd-Instance"
	passwordHeader = "X-Configd-Password"
)

type client struct {
	server   string
	source   string
	instance string
	password string

	http *http.Client
}

// do performs one request, prints the (pretty-printed when possible) JSON
// body and fails on any non-2xx status.
func (c *client) do(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.server+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.source != "" {
		req.Header.Set(sourceHeader, c.source)
	}
	if c.instance != "" {
		req.Header.Set(instanceHeader, c.instance)
	}
	if c.password != "" {
		req.Header.Set(passwordHeader, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if len(raw) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(raw))
		}
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// parseJSONArg decodes a raw JSON command-line argument.
func parseJSONArg(arg string) (interface{}, error) {
	var out interface{}
	if err := json.Unmarshal([]byte(arg), &out); err != nil {
		return nil, fmt.Errorf("argument is not valid JSON: %w", err)
	}
	return out, nil
}

func main() {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:   "configdctl",
		Short: "Command-line client for a configd server",
	}
	root.PersistentFlags().StringVar(&c.server, "server", "http://127.0.0.1:8080", "configd server base URL")
	root.PersistentFlags().StringVar(&c.source, "source", "", "value for "+sourceHeader)
	root.PersistentFlags().StringVar(&c.instance, "instance", "", "value for "+instanceHeader)
	root.PersistentFlags().StringVar(&c.password, "password", "", "value for "+passwordHeader)

	schema := &cobra.Command{Use: "schema", Short: "Manage schemas"}
	schema.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List schemas",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodGet, "/schemas", nil)
			},
		},
		&cobra.Command{
			Use:   "create <name> <root-prop-json>",
			Short: "Create a schema from its JSON property tree",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				prop, err := parseJSONArg(args[1])
				if err != nil {
					return err
				}
				return c.do(http.MethodPost, "/schemas", map[string]interface{}{
					"name": args[0], "schema": prop,
				})
			},
		},
		&cobra.Command{
			Use:   "get <schema-id>",
			Short: "Fetch a schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodGet, "/schemas/"+args[0], nil)
			},
		},
		&cobra.Command{
			Use:   "update <schema-id> <root-prop-json>",
			Short: "Replace a schema's root property tree",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				prop, err := parseJSONArg(args[1])
				if err != nil {
					return err
				}
				return c.do(http.MethodPut, "/schemas/"+args[0], map[string]interface{}{"schema": prop})
			},
		},
		&cobra.Command{
			Use:   "delete <schema-id>",
			Short: "Delete a schema (must hold no configs)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodDelete, "/schemas/"+args[0], nil)
			},
		},
		&cobra.Command{
			Use:   "validate <schema-id> <data-json>",
			Short: "Dry-run validation of a payload against a schema",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := parseJSONArg(args[1])
				if err != nil {
					return err
				}
				return c.do(http.MethodPost, "/schemas/"+args[0]+"/validate", map[string]interface{}{"data": data})
			},
		},
	)

	var populate bool
	configGet := &cobra.Command{
		Use:   "get <schema-id> <config-id>",
		Short: "Fetch a config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/schemas/" + args[0] + "/configs/" + args[1]
			if populate {
				path += "?populate=true"
			}
			return c.do(http.MethodGet, path, nil)
		},
	}
	configGet.Flags().BoolVar(&populate, "populate", false, "fill defaults and apply split division")

	config := &cobra.Command{Use: "config", Short: "Manage configs"}
	config.AddCommand(
		&cobra.Command{
			Use:   "create <schema-id> <name> <data-json>",
			Short: "Create a config under a schema",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := parseJSONArg(args[2])
				if err != nil {
					return err
				}
				body := map[string]interface{}{"name": args[1], "data": data}
				if c.password != "" {
					body["password"] = c.password
				}
				return c.do(http.MethodPost, "/schemas/"+args[0]+"/configs", body)
			},
		},
		configGet,
		&cobra.Command{
			Use:   "update <schema-id> <config-id> <data-json>",
			Short: "Replace a config's data",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := parseJSONArg(args[2])
				if err != nil {
					return err
				}
				return c.do(http.MethodPut, "/schemas/"+args[0]+"/configs/"+args[1], map[string]interface{}{"data": data})
			},
		},
		&cobra.Command{
			Use:   "delete <schema-id> <config-id>",
			Short: "Delete a config",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodDelete, "/schemas/"+args[0]+"/configs/"+args[1], nil)
			},
		},
		&cobra.Command{
			Use:   "set-password <schema-id> <config-id> <new-password>",
			Short: "Set or change a config's password (current one via --password)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodPost, "/schemas/"+args[0]+"/configs/"+args[1]+"/password",
					map[string]interface{}{"new_password": args[2]})
			},
		},
		&cobra.Command{
			Use:   "delete-password <schema-id> <config-id>",
			Short: "Clear a config's password (current one via --password)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodDelete, "/schemas/"+args[0]+"/configs/"+args[1]+"/password", nil)
			},
		},
	)

	root.AddCommand(schema, config)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
