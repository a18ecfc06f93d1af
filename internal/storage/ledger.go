package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const transactionColumns = `t.id, t.amount, t.date, t.type, t.description, t.vendor, t.category_id,
	COALESCE(c.name, ''), COALESCE(c.icon, ''), COALESCE(c.color, '')`

const transactionFrom = ` FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx       core.Transaction
		date     string
		txType   string
		category sql.NullInt64
	)
	if err := s.Scan(&tx.ID, &tx.Amount, &date, &txType, &tx.Description, &tx.Vendor, &category,
		&tx.CategoryName, &tx.CategoryIcon, &tx.CategoryColor); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	tx.Date = d
	tx.Type = core.TxType(txType)
	if category.Valid {
		id := category.Int64
		tx.CategoryID = &id
	}
	return tx, nil
}

// ListTransactions returns the transactions dated within r, newest first.
func (r *Repository) ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error) {
	rows, err := r.query(ctx, `SELECT `+transactionColumns+transactionFrom+`
		WHERE t.date >= ? AND t.date <= ?
		ORDER BY t.date DESC, t.id DESC`, dr.Start.String(), dr.End.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.queryRow(ctx, `SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ?`, id))
	if isNoRows(err) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	id, err := r.insert(ctx, `INSERT INTO transactions (amount, date, type, description, vendor, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.Amount, tx.Date.String(), string(tx.Type), tx.Description, tx.Vendor, nullableInt(tx.CategoryID), r.now().Unix())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", id,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"date", tx.Date.String())

	return r.GetTransaction(ctx, id)
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := r.exec(ctx, `UPDATE transactions
		SET amount = ?, date = ?, type = ?, description = ?, vendor = ?, category_id = ?
		WHERE id = ?`,
		tx.Amount, tx.Date.String(), string(tx.Type), tx.Description, tx.Vendor, nullableInt(tx.CategoryID), tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if err := affected(res, core.ErrNotFound); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return r.GetTransaction(ctx, tx.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := affected(res, core.ErrNotFound); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

// CountTransactions counts all stored transactions.
func (r *Repository) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Summary aggregates the range with exact decimal arithmetic.
func (r *Repository) Summary(ctx context.Context, dr core.DateRange) (core.Summary, error) {
	txs, err := r.ListTransactions(ctx, dr)
	if err != nil {
		return core.Summary{}, err
	}
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(txs, cats), nil
}

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c      core.Category
		txType string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &txType); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TxType(txType)
	return c, nil
}

// ListCategories returns all categories grouped by type, then by name.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.query(ctx, `SELECT id, name, icon, color, type FROM categories ORDER BY type, name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, `SELECT id, name, icon, color, type FROM categories WHERE id = ?`, id))
	if isNoRows(err) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	id, err := r.insert(ctx, `INSERT INTO categories (name, icon, color, type) VALUES (?, ?, ?, ?)`,
		c.Name, c.Icon, c.Color, string(c.Type))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

// UpdateCategory saves c. Changing the type of a category that is still
// referenced is rejected with a CategoryInUseError.
func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, r.rebind(`SELECT type FROM categories WHERE id = ?`), c.ID).Scan(&current); err != nil {
			if isNoRows(err) {
				return core.ErrNotFound
			}
			return err
		}
		if core.TxType(current) != c.Type {
			n, err := r.countUsage(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return &core.CategoryInUseError{Count: n, Op: "change the type of"}
			}
		}
		_, err := tx.ExecContext(ctx, r.rebind(`UPDATE categories SET name = ?, icon = ?, color = ?, type = ? WHERE id = ?`),
			c.Name, c.Icon, c.Color, string(c.Type), c.ID)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return c, nil
}

// DeleteCategory removes an unreferenced category. A category still used by
// transactions is kept and a CategoryInUseError is returned.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		n, err := r.countUsage(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &core.CategoryInUseError{Count: n}
		}
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM categories WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return affected(res, core.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

func (r *Repository) countUsage(ctx context.Context, tx *sql.Tx, categoryID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM transactions WHERE category_id = ?`), categoryID).Scan(&n)
	return n, err
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
