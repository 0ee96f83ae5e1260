// Package catalog is the read-only product lookup the storefront lists from.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

//go:embed catalog.yaml
var defaultCatalogFS embed.FS

var ErrUnknownProduct = errors.New("catalog: unknown product")

type Product struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
	Price int64  `yaml:"price"`
}

// Snapshot is the display data captured into a cart line.
func (p Product) Snapshot() cart.Snapshot {
	return cart.Snapshot{Name: p.Name, Image: p.Image, Price: p.Price}
}

type Reader interface {
	Product(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
}

type yamlCatalog struct {
	Catalog  string    `yaml:"catalog"`
	Version  int       `yaml:"version"`
	Products []Product `yaml:"products"`
}

// Static serves a fixed product list in file order.
type Static struct {
	products []Product
	byID     map[string]int
}

// Load reads a catalog file; an empty path loads the bundled catalog.
func Load(path string) (*Static, error) {
	path = strings.TrimSpace(path)
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultCatalogFS.ReadFile("catalog.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Static, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewStatic(doc.Products)
}

func NewStatic(products []Product) (*Static, error) {
	s := &Static{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("catalog product %d: missing id", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("catalog product %q: negative price", p.ID)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog product %q: duplicate id", p.ID)
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

func (s *Static) Product(_ context.Context, id string) (Product, error) {
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return s.products[i], nil
}

func (s *Static) List(_ context.Context) ([]Product, error) {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}
