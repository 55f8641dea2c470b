package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64"`
}

type gadget struct {
	ID uint `gorm:"primaryKey"`
}

func TestDatabase_InitMigratesRegisteredModels(t *testing.T) {
	d := New("sqlite://:memory:", nil)
	require.NoError(t, d.RegisterModel("example.com/p/widgets", &widget{}))
	require.NoError(t, d.RegisterModel("example.com/q/gadgets", &gadget{}))
	assert.Equal(t, []string{"example.com/p/widgets", "example.com/q/gadgets"}, d.ModelPaths())

	ctx := context.Background()
	require.NoError(t, d.Init(ctx))
	assert.True(t, d.Active())

	// Migrated tables accept writes.
	require.NoError(t, d.DB().WithContext(ctx).Create(&widget{Name: "w"}).Error)
	var count int64
	require.NoError(t, d.DB().WithContext(ctx).Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, d.Close())
	assert.False(t, d.Active())
}

func TestDatabase_RegisterAfterInitRejected(t *testing.T) {
	d := New("sqlite://:memory:", nil)
	require.NoError(t, d.Init(context.Background()))

	err := d.RegisterModel("example.com/late", &widget{})
	require.Error(t, err)
}

func TestDatabase_DoubleInitRejected(t *testing.T) {
	d := New("sqlite://:memory:", nil)
	require.NoError(t, d.Init(context.Background()))
	require.Error(t, d.Init(context.Background()))

	// After Close a re-init is allowed again.
	require.NoError(t, d.Close())
	require.NoError(t, d.Init(context.Background()))
}

func TestDatabase_UnsupportedScheme(t *testing.T) {
	d := New("bolt://somewhere", nil)
	err := d.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database url scheme")
}

func TestDatabase_CloseWithoutInit(t *testing.T) {
	d := New("sqlite://:memory:", nil)
	assert.NoError(t, d.Close())
}
