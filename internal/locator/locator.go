// Package locator describes DOM element references that are resolved lazily
// against the live page each time they are used.
package locator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Locator is a logical reference to zero or more elements. It holds no
// element handle; every query resolves it again, so a Locator stays valid
// across navigation and re-render.
//
// Matching rules:
//   - Selector narrows candidates by CSS; Role does the same through the
//     element's implicit or explicit ARIA role.
//   - Name filters role matches by accessible name (case-insensitive,
//     exact matches preferred over substring matches).
//   - HasText keeps candidates whose rendered text contains the value
//     (case-insensitive, whitespace normalised).
//   - Scope restricts the search to descendants of elements matching a CSS selector.
//   - Index picks the nth visible match, falling back to the nth match when none is visible.
type Locator struct {
	Selector string `json:"selector,omitempty"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	HasText  string `json:"hasText,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Index    int    `json:"index"`
}

// ErrEmpty is returned by Validate for a locator with neither selector nor role
var ErrEmpty = errors.New("locator needs a selector or a role")

// CSS returns a locator matching a CSS selector
func CSS(selector string) Locator {
	return Locator{Selector: selector}
}

// Role returns a locator matching elements with the given ARIA role and accessible name.
// An empty name matches any element with the role.
func Role(role, name string) Locator {
	return Locator{Role: role, Name: name}
}

// Button is shorthand for Role("button", name)
func Button(name string) Locator {
	return Role("button", name)
}

// WithText returns a copy restricted to elements whose text contains text
func (l Locator) WithText(text string) Locator {
	l.HasText = text
	return l
}

// In returns a copy searched only inside elements matching scope
func (l Locator) In(scope string) Locator {
	l.Scope = scope
	return l
}

// Nth returns a copy selecting the i-th match (zero based)
func (l Locator) Nth(i int) Locator {
	l.Index = i
	return l
}

// Validate checks that the locator can be resolved
func (l Locator) Validate() error {
	if strings.TrimSpace(l.Selector) == "" && strings.TrimSpace(l.Role) == "" {
		return ErrEmpty
	}
	if l.Index < 0 {
		return fmt.Errorf("locator %s: negative index %d", l, l.Index)
	}
	return nil
}

// JSON returns the locator as a JSON object for the in-page resolver
func (l Locator) JSON() string {
	b, _ := json.Marshal(l)
	return string(b)
}

// String describes the locator for logs and error messages,
// e.g. `role=button[name="Save"]` or `css=.legend-item >> text="Test Polygon"`.
func (l Locator) String() string {
	var b strings.Builder
	if l.Scope != "" {
		fmt.Fprintf(&b, "css=%s >> ", l.Scope)
	}
	switch {
	case l.Selector != "" && l.Role != "":
		fmt.Fprintf(&b, "css=%s role=%s", l.Selector, l.Role)
	case l.Selector != "":
		fmt.Fprintf(&b, "css=%s", l.Selector)
	default:
		fmt.Fprintf(&b, "role=%s", l.Role)
	}
	if l.Name != "" {
		fmt.Fprintf(&b, "[name=%q]", l.Name)
	}
	if l.HasText != "" {
		fmt.Fprintf(&b, " >> text=%q", l.HasText)
	}
	if l.Index > 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.Index)
	}
	return b.String()
}
