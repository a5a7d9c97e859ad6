package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/metrics"
	"golang.org/x/sync/errgroup"
)

// Endpoint labels
const (
	endpointContracts  = "contracts"
	endpointCoopStatus = "coop_status"
	endpointRoster     = "roster"
)

// ClientOptions configures the remote endpoints.
type ClientOptions struct {
	CoopStatusURL string
	RosterURL     string
	ContractsURL  string
	Info          ei.RequestInfo
	Timeout       time.Duration
	Metrics       *metrics.Metrics
}

// Client talks to the game API, the roster service and the contract catalog.
type Client struct {
	http *resty.Client
	opts ClientOptions
}

// NewClient creates a remote client.
func NewClient(opts ClientOptions) *Client {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &Client{http: client, opts: opts}
}

// catalogEntry is one element of the published contracts.json.
type catalogEntry struct {
	ID    string `json:"id"`
	Proto string `json:"proto"`
}

// FetchContracts downloads and decodes the contract catalog.
func (c *Client) FetchContracts(ctx context.Context) ([]ei.Contract, error) {
	body, err := c.do(endpointContracts, "", "", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).Get(c.opts.ContractsURL)
	})
	if err != nil {
		return nil, err
	}
	var entries []catalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, ei.DataError("", "", "contract catalog: %w", err)
	}
	return decodeCatalog(ctx, entries)
}

// decodeCatalog decodes every entry it can. A bad entry is logged and left out.
func decodeCatalog(ctx context.Context, entries []catalogEntry) ([]ei.Contract, error) {
	slots := make([]*ei.Contract, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contract, err := decodeCatalogEntry(e)
			if err != nil {
				log.Printf("gateway: skipping catalog entry: %v", err)
				return nil
			}
			slots[i] = contract
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	contracts := make([]ei.Contract, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			contracts = append(contracts, *c)
		}
	}
	return contracts, nil
}

func decodeCatalogEntry(e catalogEntry) (*ei.Contract, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Proto)
	if err != nil {
		return nil, ei.DataError(e.ID, "", "contract proto: %w", err)
	}
	contract, err := ei.UnmarshalContract(raw)
	if err != nil {
		return nil, ei.DataError(e.ID, "", "%w", err)
	}
	if contract.ID == "" {
		contract.ID = e.ID
	}
	return contract, nil
}

// FetchCoopStatus posts a coop status request and returns the base64 encoded response body.
func (c *Client) FetchCoopStatus(ctx context.Context, contractID, coopID string) ([]byte, error) {
	req := ei.CoopStatusRequest{
		ContractID: contractID,
		CoopID:     coopID,
		UserID:     c.opts.Info.UserID,
		Info:       c.opts.Info,
	}
	data := base64.StdEncoding.EncodeToString(ei.MarshalCoopStatusRequest(&req))
	return c.do(endpointCoopStatus, contractID, coopID, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{"data": data}).
			Post(c.opts.CoopStatusURL)
	})
}

// FetchRoster downloads the roster of coops for a contract.
func (c *Client) FetchRoster(ctx context.Context, contractID string) (*maj.Response, error) {
	body, err := c.do(endpointRoster, contractID, "", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParam("contract", contractID).
			Get(c.opts.RosterURL)
	})
	if err != nil {
		return nil, err
	}
	var roster maj.Response
	if err := json.Unmarshal(body, &roster); err != nil {
		return nil, ei.DataError(contractID, "", "roster: %w", err)
	}
	return &roster, nil
}

func (c *Client) do(endpoint, contractID, coopID string, call func() (*resty.Response, error)) ([]byte, error) {
	start := time.Now()
	resp, err := call()
	outcome := "ok"
	defer func() {
		if m := c.opts.Metrics; m != nil {
			m.RemoteLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			m.RemoteRequests.WithLabelValues(endpoint, outcome).Inc()
		}
	}()

	switch {
	case err != nil:
		outcome = "error"
		return nil, ei.Transient(contractID, coopID, err)
	case resp.StatusCode() == http.StatusNotFound:
		outcome = "not_found"
		return nil, ei.NotFound(contractID, coopID, fmt.Errorf("%s: %s", endpoint, resp.Status()))
	case resp.IsError():
		outcome = "error"
		return nil, ei.Transient(contractID, coopID, fmt.Errorf("%s: %s", endpoint, resp.Status()))
	}
	return resp.Body(), nil
}
