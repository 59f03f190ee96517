package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xob0t/CertStencil/pkg/layout"
)

const sampleNames = "Nguyễn Văn A\nTrần Thị B\nLê Văn C\n"

func newInitCmd() *cobra.Command {
	var layoutOut, namesOut string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample layout and names file",
		RunE: func(*cobra.Command, []string) error {
			raw, err := layout.Example(time.Now())
			if err != nil {
				return err
			}
			if err := os.WriteFile(layoutOut, raw, 0644); err != nil {
				return fmt.Errorf("write layout: %w", err)
			}
			if err := os.WriteFile(namesOut, []byte(sampleNames), 0644); err != nil {
				return fmt.Errorf("write names: %w", err)
			}

			fmt.Printf("Created: %s, %s\n", layoutOut, namesOut)
			fmt.Printf("Run: certstencil render --template mau.png --names %s --layout %s\n", namesOut, layoutOut)
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutOut, "layout", "layout.json", "Output path for the sample layout")
	cmd.Flags().StringVar(&namesOut, "names", "names.txt", "Output path for the sample names")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var layoutPath, bundlePath string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print a layout's fields and any problems with it",
		RunE: func(*cobra.Command, []string) error {
			var l *layout.Layout
			switch {
			case bundlePath != "":
				b, err := layout.LoadBundle(bundlePath)
				if err != nil {
					return err
				}
				l = b.Layout
			case layoutPath != "":
				var err error
				if l, err = layout.ParseFile(layoutPath); err != nil {
					return err
				}
			default:
				return fmt.Errorf("--layout or --bundle is required")
			}

			fmt.Print(layout.Describe(l))
			for _, w := range layout.Validate(l) {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "Layout JSON")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Bundle ("+layout.BundleExt+")")
	return cmd
}
