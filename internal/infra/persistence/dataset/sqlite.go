package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LouYuanbo1/storecrawler/internal/domain/entity"
	"github.com/LouYuanbo1/storecrawler/internal/domain/model"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FileName 数据库文件名
const FileName = "storecrawler.db"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// Store 以运行为单位追加保存商品和列表卡片
type Store struct {
	db   *sql.DB
	path string
}

type Options struct {
	// CreateIfNotExists 不存在时创建目录和数据库文件
	CreateIfNotExists bool
	EnableWAL         bool
}

func DefaultOptions() Options {
	return Options{CreateIfNotExists: true, EnableWAL: true}
}

func Open(dir string, opts Options) (*Store, error) {
	path := filepath.Join(dir, FileName)
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("检查数据库失败: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", path+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 只有一个写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, path: path}
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("开启 WAL 失败: %w", err)
		}
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		store_name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		stats_json TEXT
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		store_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		price REAL NOT NULL DEFAULT 0,
		price_determined INTEGER NOT NULL DEFAULT 0,
		currency TEXT,
		category_name TEXT,
		strategy TEXT,
		crawled_at DATETIME NOT NULL,
		product_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_run ON products(run_id);
	CREATE INDEX IF NOT EXISTS idx_products_external ON products(store_id, external_id);

	CREATE TABLE IF NOT EXISTS listing_pods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0,
		category_name TEXT,
		page INTEGER,
		crawled_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pods_run ON listing_pods(run_id);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Run 一次 scrape 的写入句柄,实现 crawl.Dataset 和 crawl.PodSink
type Run struct {
	ID    string
	store *Store
}

// BeginRun 新建一条运行记录
func (s *Store) BeginRun(ctx context.Context, storeID, storeName string, startedAt time.Time) (*Run, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, store_id, store_name, started_at) VALUES (?, ?, ?, ?)`,
		id, storeID, storeName, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	return &Run{ID: id, store: s}, nil
}

func (r *Run) PushProduct(ctx context.Context, p *entity.ExtractedProduct) error {
	data, err := json.Marshal(p.Product)
	if err != nil {
		return fmt.Errorf("序列化商品失败: %w", err)
	}
	pr := p.Product
	_, err = r.store.db.ExecContext(ctx, `
	INSERT INTO products (run_id, store_id, external_id, url, title, price, price_determined, currency, category_name, strategy, crawled_at, product_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, pr.StoreID, pr.ExternalID, pr.Url, pr.Title, pr.Price, pr.PriceDetermined,
		pr.Currency, pr.CategoryName, p.Strategy, p.CrawledAt.UTC(), string(data))
	if err != nil {
		return fmt.Errorf("保存商品失败: %w", err)
	}
	return nil
}

func (r *Run) PushListingPods(ctx context.Context, pods []entity.ListingPod) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO listing_pods (run_id, title, url, price, category_name, page, crawled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()
	for _, pod := range pods {
		if _, err := stmt.ExecContext(ctx, r.ID, pod.Title, pod.Url, pod.Price, pod.CategoryName, pod.Page, pod.CrawledAt.UTC()); err != nil {
			return fmt.Errorf("保存列表卡片失败: %w", err)
		}
	}
	return tx.Commit()
}

// Finish 记录结束时间和统计
func (r *Run) Finish(ctx context.Context, finishedAt time.Time, stats any) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("序列化统计失败: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, stats_json = ? WHERE id = ?`,
		finishedAt.UTC(), string(data), r.ID)
	if err != nil {
		return fmt.Errorf("更新运行记录失败: %w", err)
	}
	return nil
}

// RunRecord runs 表中的一行
type RunRecord struct {
	ID         string
	StoreID    string
	StoreName  string
	StartedAt  time.Time
	FinishedAt *time.Time
	StatsJSON  string
}

func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var (
		rec      RunRecord
		finished sql.NullTime
		stats    sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, store_name, started_at, finished_at, stats_json FROM runs WHERE id = ?`, id).
		Scan(&rec.ID, &rec.StoreID, &rec.StoreName, &rec.StartedAt, &finished, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("读取运行记录失败: %w", err)
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	rec.StatsJSON = stats.String
	return &rec, nil
}

// Products 某次运行保存的商品,按写入顺序
func (s *Store) Products(ctx context.Context, runID string) ([]model.ScrapedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_json FROM products WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	defer rows.Close()

	var products []model.ScrapedProduct
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("读取商品失败: %w", err)
		}
		var p model.ScrapedProduct
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("解析商品失败: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListingPods 某次运行保存的列表卡片
func (s *Store) ListingPods(ctx context.Context, runID string) ([]entity.ListingPod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, url, price, category_name, page, crawled_at FROM listing_pods WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询列表卡片失败: %w", err)
	}
	defer rows.Close()

	var pods []entity.ListingPod
	for rows.Next() {
		var (
			pod      entity.ListingPod
			category sql.NullString
			page     sql.NullInt64
		)
		if err := rows.Scan(&pod.Title, &pod.Url, &pod.Price, &category, &page, &pod.CrawledAt); err != nil {
			return nil, fmt.Errorf("读取列表卡片失败: %w", err)
		}
		pod.CategoryName = category.String
		pod.Page = int(page.Int64)
		pods = append(pods, pod)
	}
	return pods, rows.Err()
}
