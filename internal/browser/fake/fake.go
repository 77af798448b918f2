// Package fake provides an in-memory Page, Browser and Engine for tests.
// Element state is keyed by the locator's String() form, so a test sets up
// exactly the locators the code under test will resolve.
package fake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

// DefaultBox is the box given to elements made visible with Show
var DefaultBox = models.Rect{X: 10, Y: 10, Width: 100, Height: 30}

// Page is a scripted interfaces.Page
type Page struct {
	mu         sync.Mutex
	elements   map[string]models.ElementState
	checkboxes map[string]bool
	options    map[string][]string
	onClick    map[string][]func()
	onClickAt  map[string][]func(models.Point)
	onFill     map[string][]func(value string)
	actions    []string
	closes     int
	onConsole  func(models.ConsoleMessage)

	// URL is the last navigated address
	URL string

	// Test knobs; set before use
	NavigateErr   error
	QueryErr      error
	ScreenshotErr error
	CloseErr      error
	EvalFunc      func(expression string) (interface{}, error)
}

var _ interfaces.Page = (*Page)(nil)

// NewPage creates an empty page: every locator matches nothing
func NewPage() *Page {
	return &Page{
		elements:   make(map[string]models.ElementState),
		checkboxes: make(map[string]bool),
		options:    make(map[string][]string),
		onClick:    make(map[string][]func()),
		onClickAt:  make(map[string][]func(models.Point)),
		onFill:     make(map[string][]func(string)),
	}
}

// Set replaces the state reported for loc
func (p *Page) Set(loc locator.Locator, state models.ElementState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.String()] = state
}

// Show makes loc a single visible, enabled, editable element
func (p *Page) Show(loc locator.Locator) {
	p.ShowAt(loc, DefaultBox)
}

// ShowAt is Show with an explicit bounding box
func (p *Page) ShowAt(loc locator.Locator, box models.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.elements[loc.String()]
	if state.Count == 0 {
		state.Count = 1
	}
	state.Visible = true
	state.Enabled = true
	state.Editable = true
	state.Covered = false
	state.Box = box
	p.elements[loc.String()] = state
}

// Hide keeps loc in the DOM but not visible
func (p *Page) Hide(loc locator.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.elements[loc.String()]
	if !ok {
		return
	}
	state.Visible = false
	p.elements[loc.String()] = state
}

// Remove detaches loc from the DOM
func (p *Page) Remove(loc locator.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, loc.String())
}

// SetText changes the rendered text of loc
func (p *Page) SetText(loc locator.Locator, text string) {
	p.update(loc, func(s *models.ElementState) { s.Text = text })
}

// Disable marks loc as disabled
func (p *Page) Disable(loc locator.Locator) {
	p.update(loc, func(s *models.ElementState) { s.Enabled = false })
}

// Cover makes another element intercept clicks on loc
func (p *Page) Cover(loc locator.Locator, covered bool) {
	p.update(loc, func(s *models.ElementState) { s.Covered = covered })
}

// Checkbox makes loc a visible checkbox that toggles when clicked
func (p *Page) Checkbox(loc locator.Locator, checked bool) {
	p.Show(loc)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkboxes[loc.String()] = true
	state := p.elements[loc.String()]
	state.Checked = checked
	state.Tag = "input"
	p.elements[loc.String()] = state
}

// Select makes loc a visible select element with the given options
func (p *Page) Select(loc locator.Locator, options ...string) {
	p.Show(loc)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.options[loc.String()] = options
	state := p.elements[loc.String()]
	state.Tag = "select"
	if len(options) > 0 {
		state.Value = options[0]
	}
	p.elements[loc.String()] = state
}

// OnClick registers fn to run after each successful click on loc
func (p *Page) OnClick(loc locator.Locator, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[loc.String()] = append(p.onClick[loc.String()], fn)
}

// OnClickAt registers fn to run after each successful positioned click on loc
func (p *Page) OnClickAt(loc locator.Locator, fn func(offset models.Point)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClickAt[loc.String()] = append(p.onClickAt[loc.String()], fn)
}

// OnFill registers fn to run after each successful fill of loc
func (p *Page) OnFill(loc locator.Locator, fn func(value string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFill[loc.String()] = append(p.onFill[loc.String()], fn)
}

// After runs fn once d has passed, simulating an asynchronous DOM update
func (p *Page) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, fn)
}

// EmitConsole delivers a console message to the page's listener
func (p *Page) EmitConsole(kind, text string) {
	p.mu.Lock()
	cb := p.onConsole
	p.mu.Unlock()
	if cb != nil {
		cb(models.ConsoleMessage{Type: kind, Text: text, Time: time.Now()})
	}
}

// Actions returns the interaction log, e.g. "click css=#save"
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.actions))
	copy(out, p.actions)
	return out
}

// Clicks counts clicks on loc
func (p *Page) Clicks(loc locator.Locator) int {
	want := "click " + loc.String()
	n := 0
	for _, a := range p.Actions() {
		if a == want {
			n++
		}
	}
	return n
}

// State returns the current state of loc
func (p *Page) State(loc locator.Locator) models.ElementState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[loc.String()]
}

// Closes counts Close calls
func (p *Page) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Page) update(loc locator.Locator, fn func(*models.ElementState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.elements[loc.String()]
	if !ok {
		return
	}
	fn(&state)
	p.elements[loc.String()] = state
}

func (p *Page) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("goto %s", url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.URL = url
	return nil
}

func (p *Page) Query(ctx context.Context, loc locator.Locator) (models.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return models.ElementState{}, err
	}
	if err := loc.Validate(); err != nil {
		return models.ElementState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.QueryErr != nil {
		return models.ElementState{}, p.QueryErr
	}
	return p.elements[loc.String()], nil
}

func (p *Page) Click(ctx context.Context, loc locator.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	key := loc.String()
	state := p.elements[key]
	if err := interactable(loc, state, "click"); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.checkboxes[key] {
		state.Checked = !state.Checked
		p.elements[key] = state
	}
	p.record("click %s", key)
	hooks := append([]func(){}, p.onClick[key]...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (p *Page) ClickAt(ctx context.Context, loc locator.Locator, offset models.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	key := loc.String()
	state := p.elements[key]
	if !state.Found() {
		p.mu.Unlock()
		return &models.ElementNotFoundError{Locator: key, Action: "click"}
	}
	if !state.Visible {
		p.mu.Unlock()
		return &models.ElementNotInteractableError{Locator: key, Action: "click", Reason: "not visible"}
	}
	if offset.X < 0 || offset.Y < 0 || offset.X > state.Box.Width || offset.Y > state.Box.Height {
		p.mu.Unlock()
		return &models.ElementNotInteractableError{Locator: key, Action: "click", Reason: "offset outside box"}
	}
	p.record("clickAt %s (%.0f,%.0f)", key, offset.X, offset.Y)
	hooks := append([]func(models.Point){}, p.onClickAt[key]...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(offset)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, loc locator.Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	key := loc.String()
	state := p.elements[key]
	if !state.Found() {
		p.mu.Unlock()
		return &models.ElementNotFoundError{Locator: key, Action: "fill"}
	}
	if !state.Visible || !state.Editable {
		p.mu.Unlock()
		return &models.ElementNotInteractableError{Locator: key, Action: "fill", Reason: "not editable"}
	}
	state.Value = value
	p.elements[key] = state
	p.record("fill %s = %s", key, value)
	hooks := append([]func(string){}, p.onFill[key]...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(value)
	}
	return nil
}

func (p *Page) SelectOption(ctx context.Context, loc locator.Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	state := p.elements[key]
	if !state.Found() {
		return &models.ElementNotFoundError{Locator: key, Action: "select option " + value}
	}
	if state.Tag != "select" {
		return &models.ElementNotInteractableError{Locator: key, Action: "select option " + value, Reason: "not a select element"}
	}
	found := false
	for _, opt := range p.options[key] {
		if opt == value {
			found = true
			break
		}
	}
	if !found {
		return &models.ElementNotInteractableError{Locator: key, Action: "select option " + value, Reason: "no such option"}
	}
	state.Value = value
	p.elements[key] = state
	p.record("select %s = %s", key, value)
	return nil
}

// Evaluate passes the expression to EvalFunc and decodes its result into out
func (p *Page) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	fn := p.EvalFunc
	p.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("fake: no EvalFunc for %q", expression)
	}
	v, err := fn(expression)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// SetEvalFunc swaps EvalFunc while the page may be in use
func (p *Page) SetEvalFunc(fn func(expression string) (interface{}, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EvalFunc = fn
}

// Screenshot returns a small valid PNG
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot")
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return PNG(), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return p.CloseErr
}

func interactable(loc locator.Locator, state models.ElementState, action string) error {
	reason := ""
	switch {
	case !state.Found():
		return &models.ElementNotFoundError{Locator: loc.String(), Action: action}
	case !state.Visible:
		reason = "not visible"
	case !state.Enabled:
		reason = "disabled"
	case state.Covered:
		reason = "covered by another element"
	default:
		return nil
	}
	return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: reason}
}

// PNG encodes a 4x4 grey image
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Engine launches fake browsers that all share Page
type Engine struct {
	mu       sync.Mutex
	launches int
	browsers []*Browser

	Page       *Page
	LaunchErr  error
	NewPageErr error
	CloseErr   error
	// CloseDelay holds Browser.Close for a while, to exercise teardown timeouts
	CloseDelay time.Duration
}

var _ interfaces.Engine = (*Engine)(nil)

// NewEngine returns an engine backed by page
func NewEngine(page *Page) *Engine {
	return &Engine{Page: page}
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launches++
	if e.LaunchErr != nil {
		return nil, e.LaunchErr
	}
	b := &Browser{engine: e}
	e.browsers = append(e.browsers, b)
	return b, nil
}

// Launches counts Launch calls
func (e *Engine) Launches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

// Browsers returns every browser launched so far
func (e *Engine) Browsers() []*Browser {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Browser(nil), e.browsers...)
}

// Browser is a fake running browser
type Browser struct {
	mu     sync.Mutex
	engine *Engine
	closes int
}

var _ interfaces.Browser = (*Browser)(nil)

func (b *Browser) NewPage(ctx context.Context, onConsole func(models.ConsoleMessage)) (interfaces.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.engine.NewPageErr != nil {
		return nil, b.engine.NewPageErr
	}
	page := b.engine.Page
	if page == nil {
		page = NewPage()
		b.engine.Page = page
	}
	page.mu.Lock()
	page.onConsole = onConsole
	page.mu.Unlock()
	return page, nil
}

func (b *Browser) Close() error {
	if b.engine.CloseDelay > 0 {
		time.Sleep(b.engine.CloseDelay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return b.engine.CloseErr
}

// Closes counts Close calls
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}
