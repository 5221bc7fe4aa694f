package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const productColumns = `id, name, description, category, image, price, flavors, sizes, rating, reviews`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p       domain.Product
		flavors pq.StringArray
		sizes   []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Image, &p.Price, &flavors, &sizes, &p.Rating, &p.Reviews); err != nil {
		return nil, err
	}

	p.Flavors = []string(flavors)
	if p.Flavors == nil {
		p.Flavors = []string{}
	}
	p.Sizes = []domain.ProductSize{}
	if len(sizes) > 0 {
		if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
			return nil, fmt.Errorf("decode sizes for product %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// List returns products ordered by name. An empty category lists everything.
func (r *ProductRepository) List(ctx context.Context, category string) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 = '' OR category = $1
		ORDER BY name
	`, category)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}
