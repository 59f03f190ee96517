package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xob0t/CertStencil/pkg/batch"
	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/export"
	"github.com/xob0t/CertStencil/pkg/layout"
	"github.com/xob0t/CertStencil/pkg/render"
)

// renderOptions are the inputs of one CLI batch.
type renderOptions struct {
	template   string
	names      string
	layoutPath string
	bundle     string
	font       string
	out        string
	preview    string
	watch      bool
}

func newRenderCmd(a *app) *cobra.Command {
	var o renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one certificate per name",
		Long: `Render one certificate per name in the names file.

Inputs come either from --bundle (a .certbundle holding layout, template, font
and names) or from individual flags, which override the bundle's contents.
--out ending in .zip writes an archive, anything else a directory of PNGs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.bundle == "" && (o.template == "" || o.names == "") {
				return fmt.Errorf("--template and --names are required without --bundle")
			}
			err := o.run(cmd.Context(), a)
			if !o.watch {
				return err
			}
			if err != nil {
				a.log.Error("render failed", zap.Error(err))
			}
			return watch(cmd.Context(), a.log, o.watchPaths(), func() {
				if err := o.run(cmd.Context(), a); err != nil {
					a.log.Error("render failed", zap.Error(err))
				}
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.template, "template", "", "Template image (PNG or JPEG)")
	f.StringVar(&o.names, "names", "", "Names file, one recipient per line")
	f.StringVar(&o.layoutPath, "layout", "", "Layout JSON (default: the built-in fields)")
	f.StringVar(&o.bundle, "bundle", "", "Bundle ("+layout.BundleExt+") with layout, template, font and names")
	f.StringVar(&o.font, "font", "", "TTF/OTF font applied to every field")
	f.StringVarP(&o.out, "out", "o", export.ArchiveName, "Output directory, or a .zip file")
	f.StringVar(&o.preview, "preview", "", "Also write the editor preview (with placeholders) to this PNG")
	f.BoolVar(&o.watch, "watch", false, "Re-render when the names or layout file changes")
	return cmd
}

// job is a fully loaded batch.
type job struct {
	layout   *layout.Layout
	template image.Image
	names    []string
}

func (o *renderOptions) load(fonts *render.FontRegistry) (*job, error) {
	j := &job{}
	var fontData []byte
	var namesText string

	if o.bundle != "" {
		b, err := layout.LoadBundle(o.bundle)
		if err != nil {
			return nil, err
		}
		j.layout = b.Layout
		fontData = b.Font
		namesText = b.Names
		if len(b.Template) > 0 {
			if err := j.decodeTemplate(b.TemplateName, b.Template); err != nil {
				return nil, err
			}
		}
	}

	if o.layoutPath != "" {
		l, err := layout.ParseFile(o.layoutPath)
		if err != nil {
			return nil, err
		}
		j.layout = l
	}
	if j.layout == nil {
		j.layout = layout.Default(time.Now())
	}

	if o.template != "" {
		img, err := imaging.Open(o.template, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("open template: %w", err)
		}
		j.template = img
	}
	if o.names != "" {
		data, err := os.ReadFile(o.names)
		if err != nil {
			return nil, fmt.Errorf("read names: %w", err)
		}
		namesText = string(data)
	}
	j.names = certificate.ParseNames(namesText)

	if o.font != "" {
		data, err := os.ReadFile(o.font)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		fontData = data
	}
	if len(fontData) > 0 {
		family, err := fonts.Register(fontData)
		if err != nil {
			return nil, err
		}
		certificate.SetFontFamily(j.layout.Elements, family)
	}
	return j, nil
}

func (j *job) decodeTemplate(name string, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode template %s: %w", name, err)
	}
	j.template = img
	return nil
}

func (o *renderOptions) run(ctx context.Context, a *app) error {
	fonts, err := render.NewFontRegistry()
	if err != nil {
		return err
	}
	j, err := o.load(fonts)
	if err != nil {
		return err
	}
	for _, w := range layout.Validate(j.layout) {
		a.log.Warn("layout", zap.String("warning", w))
	}

	renderer := render.NewRenderer(fonts)
	if o.preview != "" {
		img, err := renderer.Render(ctx, render.Scene{Template: j.template, Elements: j.layout.Elements, Mode: render.Preview})
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		if err := render.SavePNG(img, o.preview); err != nil {
			return err
		}
	}

	node, err := snowflake.NewNode(a.cfg.NodeID)
	if err != nil {
		return err
	}
	pipeline := batch.NewPipeline(renderer, a.log.Named("batch"), nil)
	pipeline.Timeout = a.cfg.Timeout
	pipeline.Concurrency = a.cfg.Concurrency

	var stamp *render.QRStamp
	if s := j.layout.Stamp; s != nil && s.Enabled {
		stamp = s
	}
	res, err := pipeline.Generate(ctx, batch.Input{
		RunID:    node.Generate().String(),
		Template: j.template,
		Elements: j.layout.Elements,
		Names:    j.names,
		Stamp:    stamp,
	})
	if err != nil {
		return err
	}
	if len(res.Certificates) == 0 {
		return fmt.Errorf("every certificate failed (%d)", len(res.Failures))
	}

	paths, err := export.WriteFile(o.out, res.Certificates)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d certificate(s), %d failed → %s\n", len(res.Certificates), len(res.Failures), o.out)
	a.log.Debug("written", zap.Strings("paths", paths))
	return nil
}

// watchPaths are the inputs whose edits trigger a re-render.
func (o *renderOptions) watchPaths() []string {
	var paths []string
	for _, p := range []string{o.names, o.layoutPath, o.bundle, o.template} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
