package repo

import (
	"context"
	"database/sql"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// MySQLCatalog reads the menu maintained by the catalog service.
type MySQLCatalog struct{ db *sql.DB }

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog { return &MySQLCatalog{db: db} }

func (c *MySQLCatalog) Lookup(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	var it domain.CatalogItem
	err := c.db.QueryRowContext(ctx, `SELECT id,name,price,available FROM menu_items WHERE id=?`, itemID).
		Scan(&it.ID, &it.Name, &it.Price, &it.Available)
	if err != nil {
		return domain.CatalogItem{}, notFound(err, "menu item "+itemID)
	}
	return it, nil
}

var _ usecase.Catalog = (*MySQLCatalog)(nil)
