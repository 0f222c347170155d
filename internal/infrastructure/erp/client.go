package erp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/infrastructure/resilience"
)

// Client talks to the ERP REST API. It implements the catalog read and
// write ports plus the group and unit listings. Authentication is a
// bearer token obtained from /Auth/SignIn and refreshed once whenever
// a call comes back 401.
type Client struct {
	baseURL  string
	tenantID string
	username string
	password string

	httpClient *http.Client
	executor   *resilience.Executor

	mu    sync.Mutex
	token string
}

type Config struct {
	BaseURL  string
	TenantID string
	Username string
	Password string
	Timeout  time.Duration
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tenantID:   cfg.TenantID,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// The auth endpoint expects Pascal-cased keys; do not rely on
// case-insensitive binding server-side.
type signInRequest struct {
	Username string `json:"UserName"`
	Password string `json:"Password"`
}

type signInResponse struct {
	AccessToken string `json:"accessToken"`
}

// SignIn obtains a fresh access token. Callers normally never need it:
// every request authenticates lazily and re-authenticates on 401.
func (c *Client) SignIn(ctx context.Context) error {
	var resp signInResponse
	err := c.postJSON(ctx, "/Auth/SignIn", signInRequest{
		Username: c.username,
		Password: c.password,
	}, &resp, "auth", "")
	if err != nil {
		return domain.WrapError(domain.ErrUnauthorized, "erp.auth", err)
	}
	if resp.AccessToken == "" {
		return domain.WrapError(domain.ErrUnauthorized, "erp.auth", fmt.Errorf("empty access token"))
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ListProducts implements ports.CatalogReader.
func (c *Client) ListProducts(ctx context.Context) ([]domain.CatalogProduct, error) {
	var products []domain.CatalogProduct
	err := c.run(ctx, "erp.list_products", func(ctx context.Context) error {
		products = nil
		return c.authorizedGet(ctx, "/produto/Produto", &products, "list_products")
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct implements ports.CatalogWriter. The ERP echoes the
// created record back with its assigned code and internal id.
func (c *Client) CreateProduct(ctx context.Context, data domain.RegistrationData) (*domain.CatalogProduct, error) {
	var created domain.CatalogProduct
	err := c.run(ctx, "erp.create_product", func(ctx context.Context) error {
		created = domain.CatalogProduct{}
		return c.authorizedPost(ctx, "/produto/Produto", data, &created, "create_product")
	})
	if err != nil {
		return nil, err
	}
	if created.Description == "" {
		created.Description = data.Description
	}
	return &created, nil
}

// ListGroups implements ports.GroupReader.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	err := c.run(ctx, "erp.list_groups", func(ctx context.Context) error {
		groups = nil
		return c.authorizedGet(ctx, "/produto/Grupo", &groups, "list_groups")
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ListUnits implements ports.UnitReader.
func (c *Client) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	var units []domain.Unit
	err := c.run(ctx, "erp.list_units", func(ctx context.Context) error {
		units = nil
		return c.authorizedGet(ctx, "/produto/Unidade", &units, "list_units")
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (c *Client) run(ctx context.Context, endpoint string, call func(context.Context) error) error {
	wrapped := func(ctx context.Context) error {
		return c.withReauth(ctx, call)
	}
	if c.executor == nil {
		return wrapTemporaryIfNeeded(endpoint, wrapped(ctx))
	}
	return wrapTemporaryIfNeeded(endpoint, c.executor.Run(ctx, endpoint, wrapped, classifyERPError))
}

// withReauth runs the call, and on a 401 signs in again and repeats it
// exactly once. Tokens expire server-side at unknown intervals, so the
// first 401 after expiry is expected traffic, not an error.
func (c *Client) withReauth(ctx context.Context, call func(context.Context) error) error {
	if c.currentToken() == "" {
		if err := c.SignIn(ctx); err != nil {
			return err
		}
	}

	err := call(ctx)
	if !isUnauthorized(err) {
		return err
	}
	if err := c.SignIn(ctx); err != nil {
		return err
	}
	return call(ctx)
}
