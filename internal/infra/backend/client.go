package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/config"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/sirupsen/logrus"
)

var (
	// ErrStatus 后端返回非 2xx
	ErrStatus = errors.New("unexpected backend status")
	// ErrDryRun dry run 模式下没有可读取的数据
	ErrDryRun = errors.New("backend is in dry run mode")
)

// Client 商品和分类同步接口
type Client struct {
	http          *http.Client
	productURL    string
	categoriesURL string
	dryRun        bool
	dryRunDelay   time.Duration
	log           *logrus.Entry
}

func NewClient(cfg *config.Config, log *logrus.Entry) *Client {
	timeout := time.Duration(cfg.Backend.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:          &http.Client{Timeout: timeout},
		productURL:    cfg.Backend.ProductURL,
		categoriesURL: cfg.Backend.CategoriesURL,
		dryRun:        cfg.Backend.DryRun,
		dryRunDelay:   time.Duration(cfg.Backend.DryRunDelay) * time.Millisecond,
		log:           log.WithField("component", "backend"),
	}
}

// DryRun 是否只记录日志
func (c *Client) DryRun() bool {
	return c.dryRun
}

// SyncProduct 推送一个商品
func (c *Client) SyncProduct(ctx context.Context, p *model.ScrapedProduct) error {
	log := c.log.WithFields(logrus.Fields{"title": p.Title, "external_id": p.ExternalID})
	if c.dryRun {
		log.Info("同步商品(dry run)")
		return c.simulate(ctx)
	}
	if err := c.post(ctx, c.productURL, p); err != nil {
		return fmt.Errorf("同步商品 %s 失败: %w", p.ExternalID, err)
	}
	log.Debug("同步商品成功")
	return nil
}

type categoriesPayload struct {
	Store      string               `json:"store"`
	Categories []model.CategoryNode `json:"categories"`
}

// SyncCategories 推送某个商店的完整分类树
func (c *Client) SyncCategories(ctx context.Context, store string, tree []model.CategoryNode) error {
	log := c.log.WithFields(logrus.Fields{"store": store, "nodes": model.Count(tree)})
	if c.dryRun {
		log.Info("同步分类(dry run)")
		return c.simulate(ctx)
	}
	if err := c.post(ctx, c.categoriesURL, categoriesPayload{Store: store, Categories: tree}); err != nil {
		return fmt.Errorf("同步分类失败: %w", err)
	}
	log.Info("同步分类成功")
	return nil
}

// GetMappedCategories 读取后端已映射的分类树
func (c *Client) GetMappedCategories(ctx context.Context, store string) ([]model.CategoryNode, error) {
	if c.dryRun {
		return nil, ErrDryRun
	}
	u, err := url.Parse(c.categoriesURL)
	if err != nil {
		return nil, fmt.Errorf("解析分类接口地址失败: %w", err)
	}
	q := u.Query()
	q.Set("store", store)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求分类失败: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var tree []model.CategoryNode
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("解析分类失败: %w", err)
	}
	if err := model.ValidateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (c *Client) post(ctx context.Context, address string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s %s", ErrStatus, resp.Status, bytes.TrimSpace(msg))
}

func (c *Client) simulate(ctx context.Context) error {
	if c.dryRunDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.dryRunDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
