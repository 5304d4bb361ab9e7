// Package directory talks to the CRM contact directory. It supplies
// the snapshot the identity resolver matches against, and the contact
// property updates the S3 handler performs after an upload.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/internal/httpclient"
	"github.com/campusops/facultyhours/report"
)

const (
	contactsPath   = "/crm/v3/objects/contacts"
	searchPath     = "/crm/v3/objects/contacts/search"
	pageSize       = 100
	requestTimeout = 30 * time.Second
)

// Client is an HTTP client for the CRM contact API. It implements
// report.Directory.
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
	log     *zap.SugaredLogger
}

// NewClient builds a CRM client from configuration. Credentials come in
// at construction time; the client never reads ambient process state.
func NewClient(cfg config.CRMConfig, log *zap.SugaredLogger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("crm.base_url is not configured")
	}
	if cfg.Token == "" {
		return nil, errors.New("crm.token is not configured")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpclient.New(requestTimeout, httpclient.Options{}),
		log:     log,
	}, nil
}

// contact mirrors the CRM wire shape for a contact object.
type contact struct {
	ID         string `json:"id"`
	Properties struct {
		Email     string `json:"email"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
	} `json:"properties"`
}

type contactsPage struct {
	Results []contact `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// Snapshot implements report.Directory: it pages through all contacts
// and converts them to directory records. Any transport or server
// failure is reported as directory-unavailable; a partial snapshot must
// never masquerade as a complete one.
func (c *Client) Snapshot(ctx context.Context) ([]report.DirectoryRecord, error) {
	var records []report.DirectoryRecord
	after := ""

	for {
		page, err := c.fetchContactsPage(ctx, after)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDirectoryUnavailable, err.Error())
		}

		for _, ct := range page.Results {
			name := strings.TrimSpace(ct.Properties.FirstName + " " + ct.Properties.LastName)
			records = append(records, report.DirectoryRecord{
				CanonicalID: ct.ID,
				DisplayName: name,
				Email:       ct.Properties.Email,
				CRMID:       ct.ID,
			})
		}

		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		after = page.Paging.Next.After
	}

	if c.log != nil {
		c.log.Infow("Fetched directory snapshot", "contacts", len(records))
	}
	return records, nil
}

func (c *Client) fetchContactsPage(ctx context.Context, after string) (*contactsPage, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", pageSize))
	q.Set("properties", "email,firstname,lastname")
	if after != "" {
		q.Set("after", after)
	}

	var page contactsPage
	if err := c.doJSON(ctx, http.MethodGet, contactsPath+"?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchContactByEmail returns the CRM id of the contact with the given
// email, or empty string when no contact matches.
func (c *Client) SearchContactByEmail(ctx context.Context, email string) (string, error) {
	body := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": "email",
				"operator":     "EQ",
				"value":        report.NormalizeEmail(email),
			}},
		}},
		"limit": 1,
	}

	var out struct {
		Total   int       `json:"total"`
		Results []contact `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, searchPath, body, &out); err != nil {
		return "", errors.Wrapf(err, "searching contact by email %q", email)
	}
	if out.Total == 0 || len(out.Results) == 0 {
		return "", nil
	}
	return out.Results[0].ID, nil
}

// UpdateContactProperty patches a single property on a contact.
func (c *Client) UpdateContactProperty(ctx context.Context, contactID, property, value string) error {
	body := map[string]any{
		"properties": map[string]string{property: value},
	}
	path := contactsPath + "/" + url.PathEscape(contactID)
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return errors.Wrapf(err, "updating contact %s property %s", contactID, property)
	}
	return nil
}

// doJSON performs one JSON request against the CRM API.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "crm request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Newf("crm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding crm response")
		}
	}
	return nil
}
