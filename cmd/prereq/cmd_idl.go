package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (c *cli) idlCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "idl",
		Short: "Fetch the prerequisite program's Anchor IDL and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}

			result, err := svc.FetchIDL(cmd.Context())
			if err != nil {
				return err
			}

			var indented bytes.Buffer
			if err := json.Indent(&indented, result.JSON, "", "  "); err != nil {
				return errors.Wrap(err, "failed to format idl")
			}
			indented.WriteByte('\n')

			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return errors.Wrap(err, "failed to create idl directory")
			}
			if err := os.WriteFile(out, indented.Bytes(), 0644); err != nil {
				return errors.Wrap(err, "failed to write idl")
			}

			return c.print(
				struct {
					Address   string `json:"address"`
					Name      string `json:"name"`
					Version   string `json:"version"`
					Authority string `json:"authority"`
					Path      string `json:"path"`
				}{
					Address:   base58.Encode(result.Address),
					Name:      result.Name,
					Version:   result.Version,
					Authority: base58.Encode(result.Authority),
					Path:      out,
				},
				"IDL account: "+base58.Encode(result.Address),
				"Program: "+result.Name+" "+result.Version,
				"Saved IDL to "+out,
			)
		},
	}

	cmd.Flags().StringVar(&out, "out", filepath.Join("programs", "Turbin3_prereq.json"), "Path to save the IDL to")
	return cmd
}
