// Package batch renders one certificate per recipient name.
//
// Every name gets its own copy of the field collection with the recipient field
// substituted, and is drawn off-screen from that copy. No live state is mutated
// during a run, so there is nothing to settle before a capture and nothing to
// restore afterwards.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
	"github.com/xob0t/CertStencil/pkg/session"
)

// DefaultTimeout bounds a single capture.
const DefaultTimeout = 30 * time.Second

// ErrCaptureTimeout marks a capture that did not finish within the per-item timeout.
var ErrCaptureTimeout = errors.New("capture timed out")

// Rasterizer draws a scene into an image.
type Rasterizer interface {
	Render(ctx context.Context, scene render.Scene) (*image.RGBA, error)
}

// templateFitter is implemented by rasterizers that can pre-scale the template once
// per batch instead of once per name.
type templateFitter interface {
	FitTemplate(image.Image) image.Image
}

// Input is everything one batch renders from.
type Input struct {
	RunID    string
	Template image.Image
	Elements []certificate.TextElement
	Names    []string
	Stamp    *render.QRStamp
}

// Failure is a name whose capture failed.
type Failure struct {
	Name string
	Err  error
}

// Result is the outcome of a batch, in input order.
type Result struct {
	RunID        string
	Certificates []certificate.GeneratedCertificate
	Failures     []Failure
}

// Pipeline renders batches.
type Pipeline struct {
	Rasterizer  Rasterizer
	Timeout     time.Duration // per capture; DefaultTimeout when zero
	Concurrency int           // captures in flight; 1 when zero
	Logger      *zap.Logger
	Metrics     *Metrics
}

// NewPipeline creates a sequential pipeline with default timeout.
func NewPipeline(r Rasterizer, logger *zap.Logger, m *Metrics) *Pipeline {
	return &Pipeline{Rasterizer: r, Timeout: DefaultTimeout, Concurrency: 1, Logger: logger, Metrics: m}
}

type outcome struct {
	dataURL string
	err     error
}

// Generate renders one certificate per non-blank name. A failed capture is logged
// and skipped; it never aborts the batch. The returned certificates keep input order.
func (p *Pipeline) Generate(ctx context.Context, in Input) (Result, error) {
	names := cleanNames(in.Names)
	switch {
	case in.Template == nil:
		return Result{}, session.ErrNoTemplate
	case len(names) == 0:
		return Result{}, session.ErrNoNames
	}

	log := p.logger().With(zap.String("run_id", in.RunID))
	if certificate.FindRecipient(in.Elements) < 0 {
		log.Warn("no recipient field; every certificate will look the same",
			zap.String("field", certificate.RecipientFieldName))
	}

	tmpl := in.Template
	if f, ok := p.Rasterizer.(templateFitter); ok {
		tmpl = f.FitTemplate(tmpl)
	}

	outcomes := make([]outcome, len(names))
	var g errgroup.Group
	g.SetLimit(max(p.Concurrency, 1))
	for i, name := range names {
		scene := render.Scene{
			Template:  tmpl,
			Elements:  certificate.WithRecipient(in.Elements, name),
			Mode:      render.Capture,
			Stamp:     in.Stamp,
			Recipient: name,
		}
		i := i
		g.Go(func() error {
			outcomes[i] = p.capture(ctx, scene)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{RunID: in.RunID, Certificates: []certificate.GeneratedCertificate{}}
	for i, o := range outcomes {
		if o.err != nil {
			log.Warn("certificate capture failed", zap.String("name", names[i]), zap.Error(o.err))
			p.Metrics.observeFailure()
			res.Failures = append(res.Failures, Failure{Name: names[i], Err: o.err})
			continue
		}
		res.Certificates = append(res.Certificates, certificate.GeneratedCertificate{Name: names[i], DataURL: o.dataURL})
	}

	log.Info("batch finished",
		zap.Int("rendered", len(res.Certificates)),
		zap.Int("failed", len(res.Failures)))
	return res, nil
}

// capture renders one scene under the per-item timeout. A rasterizer that ignores
// its context is abandoned when the timeout fires.
func (p *Pipeline) capture(ctx context.Context, scene render.Scene) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		img, err := p.Rasterizer.Render(ctx, scene)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		data, err := render.EncodePNG(img)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{dataURL: render.DataURL(data)}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			p.Metrics.observeRender(time.Since(start))
		}
		return o
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return outcome{err: fmt.Errorf("%w after %s", ErrCaptureTimeout, p.timeout())}
		}
		return outcome{err: ctx.Err()}
	}
}

func (p *Pipeline) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// cleanNames trims every name and drops blanks.
func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
