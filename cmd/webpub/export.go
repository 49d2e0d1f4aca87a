// Copyright 2026 by HZXY DevOps Team
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	"github.com/spf13/cobra"
)

const localFlag = "local"

func newExportCmd(e *env) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export <appName> [tag]",
		Short: "save a published app image into a tarball for \"docker load\"",
		Long: `Saves a published image of an app into a tarball that can be loaded
using "docker load" on hosts without registry access. The tag defaults to
"latest".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolve(cmd, e, config.Overrides{})
			repo, err := webpub.Repository(cfg, args[0])
			if err != nil {
				return err
			}
			tag := webpub.LatestTag
			if len(args) == 2 {
				tag = args[1]
			}
			platform, _ := cmd.Flags().GetString(platformFlag)
			x := &webpub.Exporter{Platform: platform}
			if local, _ := cmd.Flags().GetBool(localFlag); local {
				if x.Daemon, err = e.newDaemon(); err != nil {
					return err
				}
			}
			out, _ := cmd.Flags().GetString(outFlag)
			if out == "" {
				out = fmt.Sprintf("%s-%s.tar", args[0], tag)
			}
			return exportTo(cmd, x, repo+":"+tag, cfg, out)
		},
	}
	exportCmd.Flags().StringP(outFlag, "o", "", "tarball to write; defaults to <appName>-<tag>.tar")
	exportCmd.Flags().String(platformFlag, "", "platform of the image, defaults to this host's platform")
	exportCmd.Flags().Bool(localFlag, false, "prefer an image available from the local Docker engine")
	return exportCmd
}

// exportTo writes the exported image into a temporary file next to the
// final one, renaming it only after a successful export.
func exportTo(cmd *cobra.Command, x *webpub.Exporter, ref string, cfg config.Configuration, path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return &webpub.IOError{Op: "create image tarball", Path: path, Err: err}
	}
	defer os.Remove(f.Name())
	_, err = x.Export(cmd.Context(), ref, cfg, f, printer(cmd.OutOrStdout()))
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &webpub.IOError{Op: "write image tarball", Path: path, Err: cerr}
	}
	if err != nil {
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return &webpub.IOError{Op: "write image tarball", Path: path, Err: err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🚚  load it using: docker load -i %s\n", path)
	return nil
}
