package accounts

import (
	"fmt"
	"sort"
	"strings"
)

// Chart is an immutable, validated account tree.
type Chart struct {
	byCode   map[string]Account
	children map[string][]string
	codes    []string
}

// NewChart validates accounts and builds the tree. Every non-root account must
// reference an existing parent one level above it.
func NewChart(accounts []Account) (*Chart, error) {
	c := &Chart{
		byCode:   make(map[string]Account, len(accounts)),
		children: make(map[string][]string),
	}
	for _, acc := range accounts {
		acc.Code = strings.TrimSpace(acc.Code)
		if acc.Code == "" {
			return nil, fmt.Errorf("%w: empty code", ErrInvalidChart)
		}
		if _, dup := c.byCode[acc.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidChart, acc.Code)
		}
		if !acc.Type.Valid() {
			return nil, fmt.Errorf("%w: %s has invalid type %q", ErrInvalidChart, acc.Code, acc.Type)
		}
		if acc.Level == 0 {
			acc.Level = CodeLevel(acc.Code)
		}
		if acc.Level != CodeLevel(acc.Code) {
			return nil, fmt.Errorf("%w: %s level %d does not match code", ErrInvalidChart, acc.Code, acc.Level)
		}
		if acc.Parent == "" && acc.Level > 1 {
			acc.Parent = ParentCode(acc.Code)
		}
		c.byCode[acc.Code] = acc
		c.codes = append(c.codes, acc.Code)
	}
	for _, code := range c.codes {
		acc := c.byCode[code]
		if acc.Level == 1 {
			if acc.Parent != "" {
				return nil, fmt.Errorf("%w: root %s cannot have parent", ErrInvalidChart, code)
			}
			continue
		}
		parent, ok := c.byCode[acc.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s references missing parent %s", ErrInvalidChart, code, acc.Parent)
		}
		if parent.Level != acc.Level-1 {
			return nil, fmt.Errorf("%w: %s parent %s is not one level up", ErrInvalidChart, code, acc.Parent)
		}
		c.children[acc.Parent] = append(c.children[acc.Parent], code)
	}
	sort.Strings(c.codes)
	for _, kids := range c.children {
		sort.Strings(kids)
	}
	return c, nil
}

// Lookup returns the account for code or ErrUnknownAccount.
func (c *Chart) Lookup(code string) (Account, error) {
	if c == nil {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, code)
	}
	acc, ok := c.byCode[code]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, code)
	}
	return acc, nil
}

// Postable returns the account when it exists and is a leaf.
func (c *Chart) Postable(code string) (Account, error) {
	acc, err := c.Lookup(code)
	if err != nil {
		return Account{}, err
	}
	if !c.IsLeaf(code) {
		return Account{}, fmt.Errorf("%w: %s", ErrNotLeafAccount, code)
	}
	return acc, nil
}

// IsLeaf reports whether code exists and has no children.
func (c *Chart) IsLeaf(code string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.byCode[code]; !ok {
		return false
	}
	return len(c.children[code]) == 0
}

// Children returns the direct children of code ordered by code.
func (c *Chart) Children(code string) []Account {
	out := make([]Account, 0, len(c.children[code]))
	for _, kid := range c.children[code] {
		out = append(out, c.byCode[kid])
	}
	return out
}

// Accounts returns every account ordered by code.
func (c *Chart) Accounts() []Account {
	out := make([]Account, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.byCode[code])
	}
	return out
}

// Leaves returns the detail accounts ordered by code.
func (c *Chart) Leaves() []Account {
	var out []Account
	for _, code := range c.codes {
		if len(c.children[code]) == 0 {
			out = append(out, c.byCode[code])
		}
	}
	return out
}
