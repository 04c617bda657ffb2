package wiki

import (
	"context"
	"maps"
	"net/url"
	"slices"
)

// Check outcomes.
const (
	CheckOK      = "ok"
	CheckFailed  = "failed"
	CheckSkipped = "skipped"
)

// User is the integration behind the API key.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Database is the part of a database object the checks report.
type Database struct {
	ID    string `json:"id"`
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
}

// Name joins the database title.
func (d *Database) Name() string {
	var name string
	for _, t := range d.Title {
		name += t.PlainText
	}
	return name
}

// Me returns the user the API key belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, "GET", "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Page, error) {
	var p Page
	if err := c.do(ctx, "GET", "/pages/"+url.PathEscape(pageID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var d Database
	if err := c.do(ctx, "GET", "/databases/"+url.PathEscape(databaseID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CheckTargets are the ids a workspace is expected to reach. Empty ids are
// reported as skipped.
type CheckTargets struct {
	ExecutivePageID string
	Databases       map[string]string
	// Write appends a test paragraph to the executive page.
	Write bool
}

type Check struct {
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// CheckReport is the outcome of Diagnose. OK is false when any check failed.
type CheckReport struct {
	OK     bool    `json:"ok"`
	User   *User   `json:"user,omitempty"`
	Checks []Check `json:"checks"`
}

func (r *CheckReport) add(c Check) {
	if c.Status == CheckFailed {
		r.OK = false
	}
	r.Checks = append(r.Checks, c)
}

// Diagnose verifies the API key and access to every configured page and
// database. Nothing past the connection check runs when the key is rejected.
func (c *Client) Diagnose(ctx context.Context, t CheckTargets) CheckReport {
	r := CheckReport{OK: true}

	u, err := c.Me(ctx)
	if err != nil {
		r.add(Check{Name: "connection", Status: CheckFailed, Detail: err.Error()})
		return r
	}
	r.User = u
	r.add(Check{Name: "connection", Status: CheckOK, Detail: u.Name})

	exec := Check{Name: "executive_page", Target: t.ExecutivePageID, Status: CheckSkipped, Detail: "not configured"}
	if t.ExecutivePageID != "" {
		if p, err := c.RetrievePage(ctx, t.ExecutivePageID); err != nil {
			exec.Status, exec.Detail = CheckFailed, err.Error()
		} else {
			exec.Status, exec.Detail = CheckOK, p.URL
		}
	}
	r.add(exec)

	for _, name := range slices.Sorted(maps.Keys(t.Databases)) {
		id := t.Databases[name]
		chk := Check{Name: name, Target: id, Status: CheckSkipped, Detail: "not configured"}
		if id != "" {
			if d, err := c.RetrieveDatabase(ctx, id); err != nil {
				chk.Status, chk.Detail = CheckFailed, err.Error()
			} else {
				chk.Status, chk.Detail = CheckOK, d.Name()
			}
		}
		r.add(chk)
	}

	write := Check{Name: "write", Target: t.ExecutivePageID, Status: CheckSkipped}
	switch {
	case !t.Write:
		write.Detail = "not requested"
	case exec.Status != CheckOK:
		write.Detail = "executive page not reachable"
	default:
		block := Paragraph(Text("✓ Notion integration test successful"))
		if err := c.AppendBlocks(ctx, t.ExecutivePageID, []Block{block}); err != nil {
			write.Status, write.Detail = CheckFailed, err.Error()
		} else {
			write.Status = CheckOK
		}
	}
	r.add(write)
	return r
}
