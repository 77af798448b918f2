package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

const (
	opState  = "state"
	opLocate = "locate"
	opFill   = "fill"
	opSelect = "select"
)

// resolverJS resolves a locator in the page and optionally acts on the
// chosen element. Every engine evaluates the same function, so locator
// semantics never depend on the backend.
const resolverJS = `function (loc, op, arg) {
  const norm = (s) => String(s == null ? '' : s).replace(/\s+/g, ' ').trim();
  const implicitRoles = {
    button: 'button, input[type=button], input[type=submit], input[type=reset], [role=button]',
    link: 'a[href], [role=link]',
    checkbox: 'input[type=checkbox], [role=checkbox]',
    radio: 'input[type=radio], [role=radio]',
    textbox: 'input:not([type]), input[type=text], input[type=email], input[type=search], input[type=url], input[type=tel], input[type=password], input[type=number], textarea, [role=textbox], [contenteditable=""], [contenteditable=true]',
    combobox: 'select, [role=combobox]',
    option: 'option, [role=option]',
    heading: 'h1, h2, h3, h4, h5, h6, [role=heading]',
    dialog: 'dialog, [role=dialog]',
    list: 'ul, ol, [role=list]',
    listitem: 'li, [role=listitem]',
  };
  const roleSelector = (role) => implicitRoles[role] || '[role="' + role + '"]';
  const nameOf = (el) => {
    const aria = el.getAttribute('aria-label');
    if (aria) return norm(aria);
    const by = el.getAttribute('aria-labelledby');
    if (by) {
      return norm(by.split(/\s+/).map((id) => {
        const n = document.getElementById(id);
        return n ? n.textContent : '';
      }).join(' '));
    }
    if (el.labels && el.labels.length) return norm(Array.from(el.labels).map((l) => l.textContent).join(' '));
    if (el.tagName === 'INPUT' && /^(button|submit|reset)$/i.test(el.type)) return norm(el.value);
    const text = norm(el.textContent);
    if (text) return text;
    return norm(el.getAttribute('title') || el.getAttribute('placeholder') || '');
  };
  const isVisible = (el) => {
    const r = el.getBoundingClientRect();
    if (r.width === 0 || r.height === 0) return false;
    const st = getComputedStyle(el);
    if (st.visibility === 'hidden' || st.visibility === 'collapse') return false;
    if (typeof el.checkVisibility === 'function') return el.checkVisibility({ visibilityProperty: true });
    return true;
  };

  const roots = loc.scope ? Array.from(document.querySelectorAll(loc.scope)) : [document];
  const selector = loc.selector || roleSelector(loc.role);
  let found = [];
  for (const root of roots) {
    for (const el of root.querySelectorAll(selector)) {
      if (!found.includes(el)) found.push(el);
    }
  }
  if (loc.selector && loc.role) {
    const rs = roleSelector(loc.role);
    found = found.filter((el) => el.matches(rs));
  }
  if (loc.name) {
    const want = norm(loc.name).toLowerCase();
    const named = found.filter((el) => nameOf(el).toLowerCase().includes(want));
    const exact = named.filter((el) => nameOf(el).toLowerCase() === want);
    found = exact.length ? exact : named;
  }
  if (loc.hasText) {
    const want = norm(loc.hasText).toLowerCase();
    found = found.filter((el) => norm(el.innerText || el.textContent).toLowerCase().includes(want));
  }

  const shown = found.filter(isVisible);
  const pool = shown.length ? shown : found;
  const el = pool[loc.index || 0];
  if (!el) {
    return {
      state: { count: found.length, visible: false, enabled: false, editable: false, checked: false, covered: false,
        text: '', value: '', tag: '', box: { x: 0, y: 0, width: 0, height: 0 } },
      error: op === 'state' ? '' : 'not-found',
    };
  }

  if (op !== 'state') {
    if (typeof el.scrollIntoViewIfNeeded === 'function') el.scrollIntoViewIfNeeded(true);
    else el.scrollIntoView({ block: 'center', inline: 'center' });
  }

  const tag = el.tagName.toLowerCase();
  const describe = () => {
    const r = el.getBoundingClientRect();
    const visible = isVisible(el);
    const disabled = el.matches(':disabled') || el.getAttribute('aria-disabled') === 'true';
    let covered = false;
    if (visible) {
      const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
      covered = !!hit && hit !== el && !el.contains(hit);
      const label = covered && hit.closest ? hit.closest('label') : null;
      if (label && label.control === el) covered = false;
    }
    return {
      count: found.length,
      visible,
      enabled: !disabled,
      editable: !disabled && (el.isContentEditable || ((tag === 'input' || tag === 'textarea') && !el.readOnly)),
      checked: !!el.checked || el.getAttribute('aria-checked') === 'true',
      covered,
      text: norm(el.innerText || el.textContent),
      value: el.value == null ? '' : String(el.value),
      tag,
      box: { x: r.left, y: r.top, width: r.width, height: r.height },
    };
  };
  const fire = (type) => el.dispatchEvent(new Event(type, { bubbles: true }));

  if (op === 'fill') {
    const st = describe();
    if (!st.visible) return { state: st, error: 'not-visible' };
    if (!st.editable) return { state: st, error: 'not-editable' };
    el.focus();
    if (el.isContentEditable) {
      const range = document.createRange();
      range.selectNodeContents(el);
      const sel = window.getSelection();
      sel.removeAllRanges();
      sel.addRange(range);
      const ok = arg === '' ? document.execCommand('delete') : document.execCommand('insertText', false, arg);
      if (!ok) el.textContent = arg;
      fire('input');
    } else {
      const proto = tag === 'textarea' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
      Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, arg);
      fire('input');
      fire('change');
    }
    return { state: describe(), error: '' };
  }

  if (op === 'select') {
    const st = describe();
    if (tag !== 'select') return { state: st, error: 'not-select' };
    if (!st.visible) return { state: st, error: 'not-visible' };
    if (!st.enabled) return { state: st, error: 'disabled' };
    const options = Array.from(el.options);
    const opt = options.find((o) => o.value === arg) || options.find((o) => norm(o.label || o.text) === norm(arg));
    if (!opt) return { state: st, error: 'no-option' };
    el.value = opt.value;
    fire('input');
    fire('change');
    return { state: describe(), error: '' };
  }

  return { state: describe(), error: '' };
}`

type resolveResult struct {
	State models.ElementState `json:"state"`
	Error string              `json:"error"`
}

// resolverExpression builds a self-invoking expression for one resolver call
func resolverExpression(loc locator.Locator, op, arg string) string {
	opJSON, _ := json.Marshal(op)
	argJSON, _ := json.Marshal(arg)
	return fmt.Sprintf("(%s)(%s, %s, %s)", resolverJS, loc.JSON(), opJSON, argJSON)
}

// backend is the engine-specific half of a page: raw navigation,
// evaluation, mouse input and capture. domPage layers locator semantics on top.
type backend interface {
	navigate(ctx context.Context, url string) error
	evaluate(ctx context.Context, expression string, out interface{}) error
	mouseClick(ctx context.Context, x, y float64) error
	screenshot(ctx context.Context) ([]byte, error)
	close() error
}

// domPage implements interfaces.Page for every engine
type domPage struct {
	b backend
}

func (p *domPage) Navigate(ctx context.Context, url string) error {
	return bounded(ctx, func() error { return p.b.navigate(ctx, url) })
}

func (p *domPage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if out == nil {
		return bounded(ctx, func() error { return p.b.evaluate(ctx, expression, nil) })
	}
	var raw json.RawMessage
	if err := bounded(ctx, func() error { return p.b.evaluate(ctx, expression, &raw) }); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

func (p *domPage) Screenshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := bounded(ctx, func() error {
		var err error
		data, err = p.b.screenshot(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (p *domPage) Close() error {
	return p.b.close()
}

func (p *domPage) mouseClick(ctx context.Context, x, y float64) error {
	return bounded(ctx, func() error { return p.b.mouseClick(ctx, x, y) })
}

// bounded returns when call finishes or ctx is done, whichever comes first.
// Not every engine threads a deadline through every call (playwright's
// Evaluate and Mouse take none), so a call still running when ctx ends is
// abandoned and its result discarded.
func bounded(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *domPage) Query(ctx context.Context, loc locator.Locator) (models.ElementState, error) {
	return p.resolve(ctx, loc, opState, "", "query")
}

func (p *domPage) Click(ctx context.Context, loc locator.Locator) error {
	state, err := p.resolve(ctx, loc, opLocate, "", "click")
	if err != nil {
		return err
	}
	if err := clickable(loc, state, "click"); err != nil {
		return err
	}
	c := state.Box.Center()
	return p.mouseClick(ctx, c.X, c.Y)
}

func (p *domPage) ClickAt(ctx context.Context, loc locator.Locator, offset models.Point) error {
	state, err := p.resolve(ctx, loc, opLocate, "", "click")
	if err != nil {
		return err
	}
	if !state.Visible {
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: "click", Reason: "not visible"}
	}
	if offset.X < 0 || offset.Y < 0 || offset.X > state.Box.Width || offset.Y > state.Box.Height {
		return &models.ElementNotInteractableError{
			Locator: loc.String(),
			Action:  "click",
			Reason:  fmt.Sprintf("offset (%.0f,%.0f) outside %.0fx%.0f box", offset.X, offset.Y, state.Box.Width, state.Box.Height),
		}
	}
	return p.mouseClick(ctx, state.Box.X+offset.X, state.Box.Y+offset.Y)
}

func (p *domPage) Fill(ctx context.Context, loc locator.Locator, value string) error {
	_, err := p.resolve(ctx, loc, opFill, value, "fill")
	return err
}

func (p *domPage) SelectOption(ctx context.Context, loc locator.Locator, value string) error {
	_, err := p.resolve(ctx, loc, opSelect, value, "select option "+value)
	return err
}

func (p *domPage) resolve(ctx context.Context, loc locator.Locator, op, arg, action string) (models.ElementState, error) {
	if err := loc.Validate(); err != nil {
		return models.ElementState{}, err
	}
	var res resolveResult
	if err := p.Evaluate(ctx, resolverExpression(loc, op, arg), &res); err != nil {
		return models.ElementState{}, fmt.Errorf("resolve %s: %w", loc, err)
	}
	return res.State, resolverError(loc, action, res.Error)
}

// clickable rejects elements that cannot take a pointer click at their centre
func clickable(loc locator.Locator, state models.ElementState, action string) error {
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

func resolverError(loc locator.Locator, action, code string) error {
	switch code {
	case "":
		return nil
	case "not-found":
		return &models.ElementNotFoundError{Locator: loc.String(), Action: action}
	case "not-visible":
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: "not visible"}
	case "not-editable":
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: "not editable"}
	case "not-select":
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: "not a select element"}
	case "disabled":
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: "disabled"}
	case "no-option":
		return &models.ElementNotInteractableError{Locator: loc.String(), Action: action, Reason: "no such option"}
	}
	return errors.New("resolver: " + code)
}
