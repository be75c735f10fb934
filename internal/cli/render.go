package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"deltactl/internal/app"
	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
)

const none = "-"

// RenderView prints the session and cache state.
func RenderView(p *Printer, v app.View) error {
	if ok, err := p.Structured(v); ok {
		return err
	}

	t := p.newTable("FIELD", "VALUE")
	t.AppendRow(table.Row{"State", stateText(v.State)})
	if v.Account != nil {
		t.AppendRow(table.Row{"Account", lo.CoalesceOrEmpty(v.Account.Username, v.Account.Name, v.Account.Subject)})
		t.AppendRow(table.Row{"Account ID", v.Account.HomeAccountID})
	} else {
		t.AppendRow(table.Row{"Account", none})
	}
	t.AppendRow(table.Row{"Admin", yesNo(v.CanViewAdmin)})
	t.AppendRow(table.Row{"Data status", statusText(v.Cache.Status)})
	t.AppendRow(table.Row{"Primary data", sizeText(v.Cache.PrimaryData)})
	t.AppendRow(table.Row{"User data", sizeText(v.Cache.UserData)})
	t.AppendRow(table.Row{"Last fetched", timeText(v.Cache.LastFetched)})
	if v.Cache.Error != "" {
		t.AppendRow(table.Row{"Data error", text.FgRed.Sprint(truncate(v.Cache.Error))})
	}
	if v.LastError != "" {
		t.AppendRow(table.Row{"Last error", text.FgRed.Sprint(truncate(v.LastError))})
	}
	if v.InitError != "" {
		t.AppendRow(table.Row{"Startup error", text.FgRed.Sprint(truncate(v.InitError))})
	}
	t.Render()
	return nil
}

// claimsView is the structured form of identity.Claims.
type claimsView struct {
	Subject   string     `json:"sub" yaml:"sub"`
	Issuer    string     `json:"iss" yaml:"iss"`
	Audience  []string   `json:"aud" yaml:"aud"`
	Username  string     `json:"username,omitempty" yaml:"username,omitempty"`
	Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
	Email     string     `json:"email,omitempty" yaml:"email,omitempty"`
	Roles     []string   `json:"roles" yaml:"roles"`
	Groups    []string   `json:"groups" yaml:"groups"`
	IssuedAt  *time.Time `json:"iat,omitempty" yaml:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty" yaml:"exp,omitempty"`
	Raw       any        `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// RenderClaims prints the decoded ID token claims. Table mode lists the typed
// claims and then every other claim the token carries.
func RenderClaims(p *Printer, c *identity.Claims) error {
	if c == nil {
		p.empty("No ID token")
		return nil
	}
	if ok, err := p.Structured(claimsView{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		Username:  c.Username(),
		Name:      c.Name,
		Email:     c.Email,
		Roles:     c.Roles,
		Groups:    c.Groups,
		IssuedAt:  lo.EmptyableToPtr(c.IssuedAt),
		ExpiresAt: lo.EmptyableToPtr(c.ExpiresAt),
		Raw:       map[string]any(c.Raw),
	}); ok {
		return err
	}

	t := p.newTable("CLAIM", "VALUE")
	t.AppendRow(table.Row{"Subject", c.Subject})
	t.AppendRow(table.Row{"Issuer", c.Issuer})
	t.AppendRow(table.Row{"Audience", listText(c.Audience)})
	t.AppendRow(table.Row{"Username", lo.CoalesceOrEmpty(c.Username(), none)})
	t.AppendRow(table.Row{"Name", lo.CoalesceOrEmpty(c.Name, none)})
	t.AppendRow(table.Row{"Roles", listText(c.Roles)})
	t.AppendRow(table.Row{"Groups", listText(c.Groups)})
	t.AppendRow(table.Row{"Issued", timeText(c.IssuedAt)})
	expires := timeText(c.ExpiresAt)
	if c.Expired(time.Now()) {
		expires = text.FgRed.Sprint(expires + " (expired)")
	}
	t.AppendRow(table.Row{"Expires", expires})

	known := []string{"sub", "iss", "aud", "exp", "iat", "name", "preferred_username", "email", "roles", "groups"}
	extra := lo.Filter(lo.Keys(map[string]any(c.Raw)), func(k string, _ int) bool {
		return !lo.Contains(known, k)
	})
	slices.Sort(extra)
	if len(extra) > 0 {
		t.AppendSeparator()
		for _, k := range extra {
			t.AppendRow(table.Row{text.FgHiBlack.Sprint(k), truncate(valueText(c.Raw[k]))})
		}
	}
	t.Render()
	return nil
}

// RenderProfile prints the provider's profile document.
func RenderProfile(p *Printer, profile *identity.UserProfile) error {
	if profile == nil {
		p.empty("No profile")
		return nil
	}
	var structured any = profile
	if profile.Raw != nil {
		structured = profile.Raw
	}
	if ok, err := p.Structured(structured); ok {
		return err
	}

	t := p.newTable("FIELD", "VALUE")
	t.AppendRow(table.Row{"Subject", profile.Subject})
	t.AppendRow(table.Row{"Name", lo.CoalesceOrEmpty(profile.Name, none)})
	t.AppendRow(table.Row{"Username", lo.CoalesceOrEmpty(profile.PreferredUsername, none)})
	t.AppendRow(table.Row{"Email", lo.CoalesceOrEmpty(profile.Email, none)})
	t.Render()
	return nil
}

// RenderPaths prints an admin file listing.
func RenderPaths(p *Printer, paths []string) error {
	if ok, err := p.Structured(lo.Ternary(paths == nil, []string{}, paths)); ok {
		return err
	}
	if len(paths) == 0 {
		p.empty("No admin files found")
		return nil
	}

	t := p.newTable("#", "PATH")
	for i, path := range paths {
		t.AppendRow(table.Row{i + 1, path})
	}
	t.Render()
	fmt.Fprintf(p.out, "%s %s\n", text.FgHiBlue.Sprint("Total:"), pluralize(len(paths), "file"))
	return nil
}

// RenderPayload prints a data payload. json mode prints the server's bytes,
// indented; table mode lists the top-level keys of an object and falls back
// to indented JSON for anything else.
func RenderPayload(p *Printer, payload *dataclient.Payload) error {
	if payload == nil {
		p.empty("No data")
		return nil
	}

	switch p.format {
	case OutputFormatJSON:
		return p.writeIndented(payload.Bytes())
	case OutputFormatYAML:
		var v any
		if err := payload.Decode(&v); err != nil {
			return err
		}
		return p.writeYAML(v)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload.Bytes(), &obj); err != nil || obj == nil {
		return p.writeIndented(payload.Bytes())
	}
	if len(obj) == 0 {
		p.empty("Empty object")
		return nil
	}

	keys := lo.Keys(obj)
	slices.Sort(keys)
	t := p.newTable("KEY", "VALUE")
	for _, k := range keys {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(k), truncate(compact(obj[k]))})
	}
	t.Render()
	return nil
}

func (p *Printer) writeIndented(raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := fmt.Fprintln(p.out, string(raw))
		return werr
	}
	_, err := fmt.Fprintln(p.out, buf.String())
	return err
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func valueText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		return strings.Join(lo.Map(x, func(e any, _ int) string { return fmt.Sprint(e) }), ", ")
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

func stateText(s identity.AuthState) string {
	switch s {
	case identity.StateAuthenticated:
		return text.FgGreen.Sprint(s.String())
	case identity.StatePending:
		return text.FgYellow.Sprint(s.String())
	case identity.StateStaleCredential, identity.StateUninitialized:
		return text.FgRed.Sprint(s.String())
	default:
		return s.String()
	}
}

func statusText(s dataclient.Status) string {
	switch s {
	case dataclient.StatusSuccess:
		return text.FgGreen.Sprint(s.String())
	case dataclient.StatusLoading:
		return text.FgYellow.Sprint(s.String())
	case dataclient.StatusError:
		return text.FgRed.Sprint(s.String())
	default:
		return s.String()
	}
}

func sizeText(p *dataclient.Payload) string {
	if p == nil {
		return none
	}
	return fmt.Sprintf("cached (%d bytes)", len(p.Bytes()))
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return none
	}
	return t.Local().Format(time.RFC3339)
}

func listText(items []string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	return lo.Ternary(b, "yes", "no")
}

// pluralize returns a formatted string with count and properly pluralized word.
func pluralize(count int, singular string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %ss", count, singular)
}

// RenderCache prints the data cache without its payloads.
func RenderCache(p *Printer, s dataclient.Snapshot) error {
	if ok, err := p.Structured(s); ok {
		return err
	}

	t := p.newTable("FIELD", "VALUE")
	t.AppendRow(table.Row{"Status", statusText(s.Status)})
	t.AppendRow(table.Row{"Owner", lo.CoalesceOrEmpty(s.Owner, none)})
	t.AppendRow(table.Row{"Primary data", sizeText(s.PrimaryData)})
	t.AppendRow(table.Row{"User data", sizeText(s.UserData)})
	t.AppendRow(table.Row{"Last fetched", timeText(s.LastFetched)})
	if s.Error != "" {
		t.AppendRow(table.Row{"Error", text.FgRed.Sprint(truncate(s.Error))})
	}
	t.Render()
	return nil
}
