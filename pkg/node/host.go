// Package node runs the Drata action and trigger against a workflow host.
//
// The host supplies per-item parameters, credentials and binary data through
// the Host interface; this package resolves them into resource operations and
// poll invocations.
package node

import (
	"context"
	"fmt"

	"github.com/Sternrassler/drata-client/pkg/client"
)

// Credentials are the stored Drata API credentials.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// Host is the workflow runtime executing a node.
type Host interface {
	// Parameters returns the resolved node parameters for one input item.
	Parameters(itemIndex int) (map[string]any, error)

	// Credentials returns the Drata credentials of the node.
	Credentials(ctx context.Context) (Credentials, error)

	// BinaryData returns the file stored under property of one input item.
	BinaryData(itemIndex int, property string) (client.File, error)

	// ContinueOnFail reports whether item failures are returned as output
	// instead of aborting the batch.
	ContinueOnFail() bool
}

// Connect builds an API client from credentials.
func Connect(creds Credentials) (*client.Client, error) {
	cfg := client.DefaultConfig(creds.APIKey)
	if creds.BaseURL != "" {
		cfg.BaseURL = creds.BaseURL
	}
	return client.New(cfg)
}

// StaticHost is a Host backed by fixed values. The CLI uses it to run a
// single operation outside of a workflow runtime.
type StaticHost struct {
	Creds Credentials

	// Items holds the parameters of every input item.
	Items []map[string]any

	// Files holds the binary data of every input item, keyed by property.
	Files []map[string]client.File

	FailSoft bool
}

// Parameters implements Host.
func (h *StaticHost) Parameters(itemIndex int) (map[string]any, error) {
	if itemIndex < 0 || itemIndex >= len(h.Items) {
		return nil, fmt.Errorf("item %d out of range", itemIndex)
	}
	return h.Items[itemIndex], nil
}

// Credentials implements Host.
func (h *StaticHost) Credentials(ctx context.Context) (Credentials, error) {
	if h.Creds.APIKey == "" {
		return Credentials{}, client.ErrMissingAPIKey
	}
	return h.Creds, nil
}

// BinaryData implements Host.
func (h *StaticHost) BinaryData(itemIndex int, property string) (client.File, error) {
	if itemIndex < 0 || itemIndex >= len(h.Files) {
		return client.File{}, fmt.Errorf("item %d has no binary data", itemIndex)
	}
	file, ok := h.Files[itemIndex][property]
	if !ok {
		return client.File{}, fmt.Errorf("item %d has no binary property %q", itemIndex, property)
	}
	return file, nil
}

// ContinueOnFail implements Host.
func (h *StaticHost) ContinueOnFail() bool {
	return h.FailSoft
}

// VerifyCredentials checks the host's credentials against the API.
func VerifyCredentials(ctx context.Context, host Host) error {
	creds, err := host.Credentials(ctx)
	if err != nil {
		return err
	}
	c, err := Connect(creds)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.TestCredentials(ctx)
}
