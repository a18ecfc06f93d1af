package dashboard

import (
	"context"

	"fintrack/internal/client"
	"fintrack/internal/core"
)

// CategoryAPI is the category half of the REST client.
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, id int64, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// CategoryView is the category registry screen.
type CategoryView struct {
	api        CategoryAPI
	categories []core.Category
}

func NewCategoryView(api CategoryAPI) *CategoryView {
	return &CategoryView{api: api}
}

func (v *CategoryView) Categories() []core.Category { return v.categories }

// OfType lists the loaded categories of type t.
func (v *CategoryView) OfType(t core.TxType) []core.Category {
	return CategoriesOfType(v.categories, t)
}

func (v *CategoryView) Load(ctx context.Context) error {
	cats, err := v.api.ListCategories(ctx)
	if err != nil {
		return err
	}
	v.categories = cats
	return nil
}

// Save creates c, or updates it when it has an id, and reloads.
func (v *CategoryView) Save(ctx context.Context, c core.Category) (core.Category, error) {
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	var (
		saved core.Category
		err   error
	)
	if c.ID == 0 {
		saved, err = v.api.CreateCategory(ctx, c)
	} else {
		saved, err = v.api.UpdateCategory(ctx, c.ID, c)
	}
	if err != nil {
		return core.Category{}, err
	}
	return saved, v.Load(ctx)
}

// Delete attempts the deletion. When the backend refuses, the returned
// message is the backend's and the loaded categories are left untouched.
func (v *CategoryView) Delete(ctx context.Context, id int64) (string, error) {
	if err := v.api.DeleteCategory(ctx, id); err != nil {
		return client.Message(err), err
	}
	return "", v.Load(ctx)
}
