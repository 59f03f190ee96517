// Package session owns the editor's state. All mutation goes through Store methods;
// readers get deep copies, so the render pipeline and the drag handler never share
// mutable state with the HTTP layer.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/disintegration/imaging"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
)

var (
	ErrNoTemplate           = errors.New("no certificate template uploaded")
	ErrNoNames              = errors.New("name list has no names")
	ErrGenerationInProgress = errors.New("generation already in progress")
	ErrUnknownElement       = errors.New("unknown text element")
	ErrStaleRun             = errors.New("generation run is no longer current")
)

// Failure records a recipient whose certificate could not be rendered.
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// State is a snapshot of the session.
type State struct {
	TemplateName string                             `json:"templateName,omitempty"`
	Template     image.Image                        `json:"-"`
	CustomFont   string                             `json:"customFont,omitempty"`
	NamesText    string                             `json:"namesText"`
	Elements     []certificate.TextElement          `json:"elements"`
	Stamp        render.QRStamp                     `json:"stamp"`
	Certificates []certificate.GeneratedCertificate `json:"certificates"`
	Failures     []Failure                          `json:"failures"`
	Generating   bool                               `json:"generating"`
	RunID        string                             `json:"runId,omitempty"`
}

// HasTemplate reports whether a template is loaded.
func (s State) HasTemplate() bool {
	return s.Template != nil
}

// Names returns the parsed recipient names.
func (s State) Names() []string {
	return certificate.ParseNames(s.NamesText)
}

func (s State) clone() State {
	out := s
	out.Elements = certificate.Clone(s.Elements)
	out.Certificates = slices.Clone(s.Certificates)
	out.Failures = slices.Clone(s.Failures)
	return out
}

// Store is the single owner of session state.
type Store struct {
	fonts *render.FontRegistry
	ids   *snowflake.Node
	now   func() time.Time

	mu    sync.RWMutex
	state State
}

// NewStore creates a store initialised with the demonstration fields.
func NewStore(fonts *render.FontRegistry, ids *snowflake.Node) *Store {
	s := &Store{fonts: fonts, ids: ids, now: time.Now}
	s.state = s.initialState()
	return s
}

func (s *Store) initialState() State {
	return State{
		Elements:     certificate.DefaultElements(s.now()),
		Certificates: []certificate.GeneratedCertificate{},
		Failures:     []Failure{},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Reset drops everything and restores the demonstration fields.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = s.initialState()
	s.mu.Unlock()
}

// SetTemplate decodes an uploaded template image and makes it the surface background.
func (s *Store) SetTemplate(name string, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode template %q: %w", name, err)
	}
	s.SetTemplateImage(name, img)
	return nil
}

// SetTemplateImage installs an already decoded template.
func (s *Store) SetTemplateImage(name string, img image.Image) {
	s.mu.Lock()
	s.state.TemplateName = name
	s.state.Template = img
	s.mu.Unlock()
}

// SetFont registers an uploaded font under a new family and switches every field to it.
func (s *Store) SetFont(data []byte) (string, error) {
	family, err := s.fonts.Register(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.state.CustomFont = family
	certificate.SetFontFamily(s.state.Elements, family)
	s.mu.Unlock()
	return family, nil
}

// SetNames replaces the raw name list.
func (s *Store) SetNames(text string) {
	s.mu.Lock()
	s.state.NamesText = text
	s.mu.Unlock()
}

// NameCount returns how many certificates the current list would produce.
func (s *Store) NameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Names())
}

// SetStamp replaces the verification stamp settings.
func (s *Store) SetStamp(stamp render.QRStamp) {
	s.mu.Lock()
	s.state.Stamp = stamp
	s.mu.Unlock()
}

// SetElements replaces the whole field collection.
func (s *Store) SetElements(elements []certificate.TextElement) {
	s.mu.Lock()
	s.state.Elements = certificate.Clone(elements)
	s.mu.Unlock()
}

// Import is a complete editor setup loaded from a bundle. Empty parts keep the
// current value.
type Import struct {
	Elements     []certificate.TextElement
	Stamp        *render.QRStamp
	TemplateName string
	Template     []byte
	Font         []byte
	Names        string
}

// Import decodes the template and registers the font, then commits every part at
// once. The state is unchanged when any part fails.
func (s *Store) Import(in Import) (string, error) {
	var tmpl image.Image
	if len(in.Template) > 0 {
		img, err := imaging.Decode(bytes.NewReader(in.Template), imaging.AutoOrientation(true))
		if err != nil {
			return "", fmt.Errorf("decode template %q: %w", in.TemplateName, err)
		}
		tmpl = img
	}
	var family string
	if len(in.Font) > 0 {
		f, err := s.fonts.Register(in.Font)
		if err != nil {
			return "", err
		}
		family = f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Elements = certificate.Clone(in.Elements)
	if in.Stamp != nil {
		s.state.Stamp = *in.Stamp
	}
	if tmpl != nil {
		s.state.TemplateName = in.TemplateName
		s.state.Template = tmpl
	}
	if family != "" {
		s.state.CustomFont = family
		certificate.SetFontFamily(s.state.Elements, family)
	}
	if in.Names != "" {
		s.state.NamesText = in.Names
	}
	return family, nil
}

// Element returns a copy of the field with the given id.
func (s *Store) Element(id int) (certificate.TextElement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := certificate.Find(s.state.Elements, id)
	if i < 0 {
		return certificate.TextElement{}, fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	return s.state.Elements[i], nil
}

// UpdateElement applies a control-panel edit to field id.
func (s *Store) UpdateElement(id int, patch certificate.ElementPatch) (certificate.TextElement, error) {
	if err := patch.Validate(); err != nil {
		return certificate.TextElement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := certificate.Find(s.state.Elements, id)
	if i < 0 {
		return certificate.TextElement{}, fmt.Errorf("%w: %d", ErrUnknownElement, id)
	}
	patch.Apply(&s.state.Elements[i])
	return s.state.Elements[i], nil
}

// UpdateText sets the text of field id.
func (s *Store) UpdateText(id int, text string) (certificate.TextElement, error) {
	return s.UpdateElement(id, certificate.ElementPatch{Text: &text})
}

// MoveElement sets the position of field id. It is the drag handler's update callback.
func (s *Store) MoveElement(id int, pos certificate.Position) error {
	_, err := s.UpdateElement(id, certificate.ElementPatch{Position: &pos})
	return err
}

// BeginGeneration checks the preconditions of a batch and, if they hold, clears the
// previous results, marks generation in progress and returns the state to render from.
// On error nothing changes.
func (s *Store) BeginGeneration() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Generating:
		return State{}, ErrGenerationInProgress
	case !s.state.HasTemplate():
		return State{}, ErrNoTemplate
	case len(s.state.Names()) == 0:
		return State{}, ErrNoNames
	}

	s.state.Certificates = []certificate.GeneratedCertificate{}
	s.state.Failures = []Failure{}
	s.state.Generating = true
	s.state.RunID = s.ids.Generate().String()
	return s.state.clone(), nil
}

// FinishGeneration publishes the results of run runID, replacing any previous ones,
// and clears the in-progress flag.
func (s *Store) FinishGeneration(runID string, certs []certificate.GeneratedCertificate, failures []Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Generating || s.state.RunID != runID {
		return fmt.Errorf("%w: %s", ErrStaleRun, runID)
	}
	if certs == nil {
		certs = []certificate.GeneratedCertificate{}
	}
	if failures == nil {
		failures = []Failure{}
	}
	s.state.Certificates = slices.Clone(certs)
	s.state.Failures = slices.Clone(failures)
	s.state.Generating = false
	return nil
}

// Certificates returns the current results.
func (s *Store) Certificates() []certificate.GeneratedCertificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Certificates)
}
