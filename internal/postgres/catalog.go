package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/paging"
)

const productColumns = `id, vendor_id, category_id, subcategory_id, name, slug, description, short_description,
	price, original_price, discount, currency, images, main_image, sku, stock, low_stock_threshold,
	attributes, tags, is_featured, is_active, rating, review_count, total_sales, weight, dimensions, seo,
	created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.VendorID, &p.CategoryID, &p.SubcategoryID, &p.Name, &p.Slug, &p.Description,
		&p.ShortDescription, &p.Price, &p.OriginalPrice, &p.Discount, &p.Currency, &p.Images, &p.MainImage,
		&p.SKU, &p.Stock, &p.LowStockThreshold, &p.Attributes, &p.Tags, &p.IsFeatured, &p.IsActive,
		&p.Rating, &p.ReviewCount, &p.TotalSales, &p.Weight, &p.Dimensions, &p.SEO, &p.CreatedAt, &p.UpdatedAt)
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Attributes == nil {
		p.Attributes = []catalog.Attribute{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		p.ID, p.VendorID, p.CategoryID, p.SubcategoryID, p.Name, p.Slug, p.Description, p.ShortDescription,
		p.Price, p.OriginalPrice, p.Discount, p.Currency, p.Images, p.MainImage, p.SKU, p.Stock,
		p.LowStockThreshold, p.Attributes, p.Tags, p.IsFeatured, p.IsActive, p.Rating, p.ReviewCount,
		p.TotalSales, p.Weight, p.Dimensions, p.SEO, p.CreatedAt, p.UpdatedAt)
	return mapErr(err, "product")
}

func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	return p, mapErr(err, "product")
}

// UpdateProduct writes the vendor-editable fields. Rating, review count
// and sales counters belong to reviews and checkout.
func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET category_id=$2, subcategory_id=$3, name=$4, slug=$5, description=$6,
			short_description=$7, price=$8, original_price=$9, discount=$10, images=$11, main_image=$12,
			sku=$13, stock=$14, low_stock_threshold=$15, attributes=$16, tags=$17, is_featured=$18,
			is_active=$19, weight=$20, dimensions=$21, seo=$22, updated_at=$23
		WHERE id=$1`,
		p.ID, p.CategoryID, p.SubcategoryID, p.Name, p.Slug, p.Description,
		p.ShortDescription, p.Price, p.OriginalPrice, p.Discount, p.Images, p.MainImage,
		p.SKU, p.Stock, p.LowStockThreshold, p.Attributes, p.Tags, p.IsFeatured,
		p.IsActive, p.Weight, p.Dimensions, p.SEO, p.UpdatedAt)
	if err != nil {
		return mapErr(err, "product")
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "product")
	}
	return nil
}

func (s *Store) SetProductRating(ctx context.Context, productID string, rating float64, count int) error {
	_, err := s.DB.Exec(ctx, `UPDATE products SET rating=$2, review_count=$3 WHERE id=$1`, productID, rating, count)
	return mapErr(err, "product")
}

var productOrder = map[string]string{
	catalog.SortNewest:    "created_at DESC",
	catalog.SortPriceAsc:  "price ASC, created_at DESC",
	catalog.SortPriceDesc: "price DESC, created_at DESC",
	catalog.SortRating:    "rating DESC, review_count DESC",
	catalog.SortPopular:   "total_sales DESC, created_at DESC",
}

func productWhere(f catalog.ProductFilter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.VendorID != "" {
		add("vendor_id = $%d", f.VendorID)
	}
	if f.CategoryID != "" {
		add("category_id = $%d", f.CategoryID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.Featured != nil {
		add("is_featured = $%d", *f.Featured)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR sku ILIKE $%d OR tags::text ILIKE $%d)", n, n, n, n))
	}
	switch f.Status {
	case catalog.StatusActive:
		where = append(where, "is_active")
	case catalog.StatusInactive:
		where = append(where, "NOT is_active")
	case catalog.StatusLowStock:
		where = append(where, "stock > 0 AND stock <= low_stock_threshold")
	case catalog.StatusOutOfStock:
		where = append(where, "stock = 0")
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (s *Store) ListProducts(ctx context.Context, f catalog.ProductFilter, p paging.Page) ([]catalog.Product, int, error) {
	cond, args := productWhere(f)
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count products")
	}
	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder[catalog.SortNewest]
	}
	args = append(args, p.Limit, p.Offset())
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, cond, order, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapErr(err, "list products")
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan product")
		}
		out = append(out, pr)
	}
	return out, total, mapErr(rows.Err(), "list products")
}

func (s *Store) CountProducts(ctx context.Context, vendorID string) (catalog.ProductCounts, error) {
	var c catalog.ProductCounts
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE stock > 0 AND stock <= low_stock_threshold),
			COUNT(*) FILTER (WHERE stock = 0)
		FROM products WHERE vendor_id=$1`, vendorID).Scan(&c.Total, &c.Active, &c.LowStock, &c.OutOfStock)
	return c, mapErr(err, "count products")
}

// ---- categories ----

const categoryColumns = `c.id, c.name, c.slug, c.description, COALESCE(c.parent_id, ''), c.image, c.icon,
	c.sort_order, c.is_active, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id AND p.is_active)`

func scanCategory(row pgx.Row) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.Image, &c.Icon,
		&c.Order, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.ProductCount)
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, c *catalog.Category) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO categories(id, name, slug, description, parent_id, image, icon, sort_order, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9,$10,$11)`,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.Image, c.Icon, c.Order, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return mapErr(err, "category")
}

func (s *Store) GetCategory(ctx context.Context, id string) (catalog.Category, error) {
	c, err := scanCategory(s.DB.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id=$1`, id))
	return c, mapErr(err, "category")
}

// ListCategories returns every category when parentID is nil and the
// direct children of *parentID otherwise.
func (s *Store) ListCategories(ctx context.Context, parentID *string, activeOnly bool) ([]catalog.Category, error) {
	var args []any
	var where []string
	if parentID != nil {
		args = append(args, *parentID)
		where = append(where, "c.parent_id = $1")
	}
	if activeOnly {
		where = append(where, "c.is_active")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.DB.Query(ctx, `SELECT `+categoryColumns+` FROM categories c`+cond+` ORDER BY c.sort_order, c.name`, args...)
	if err != nil {
		return nil, mapErr(err, "list categories")
	}
	defer rows.Close()

	out := []catalog.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapErr(err, "scan category")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "list categories")
}
