package main

import (
	"github.com/spf13/cobra"

	"github.com/xob0t/CertStencil/clients/server"
	"github.com/xob0t/CertStencil/pkg/config"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web editor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := server.New(server.Options{Config: a.cfg, Logger: a.log})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	d := config.Defaults()
	f := cmd.Flags()
	f.IntP(config.KeyPort, "p", d.Port, "Listen port")
	f.Bool(config.KeyOpenBrowser, false, "Open the editor in a browser")
	f.Int(config.KeyMaxUpload, int(d.MaxUploadBytes>>20), "Largest accepted upload in MiB")
	f.Int64(config.KeyNodeID, d.NodeID, "Snowflake node id for run ids (0-1023)")
	f.Int(config.KeyThumbWidth, d.ThumbnailWidth, "Gallery thumbnail width in pixels")
	return cmd
}
