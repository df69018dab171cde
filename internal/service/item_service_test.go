package service

import (
	"context"
	"strings"
	"testing"

	"itemsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.items.Create(ctx, 2, "shield", model.ItemStat{Defense: int64Ptr(8)}, 700)
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ItemCode)

	_, err = f.items.Create(ctx, 1, "sword", swordStat(), 0)
	require.NoError(t, err, "free items are allowed")

	_, err = f.items.Create(ctx, 2, "copy", model.ItemStat{}, 1)
	assert.True(t, IsKind(err, KindConflict))

	list, err := f.items.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ItemSummary{
		{ItemCode: 1, ItemName: "sword", ItemPrice: 0},
		{ItemCode: 2, ItemName: "shield", ItemPrice: 700},
	}, list)

	item, err := f.items.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.ItemStat.DefenseValue())
	assert.Nil(t, item.ItemStat.Attack)

	_, err = f.items.Get(ctx, 3)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		code  int64
		label string
		price int64
	}{
		{"zero code", 0, "x", 1},
		{"blank name", 1, "  ", 1},
		{"negative price", 1, "x", -1},
		{"name too long", 1, strings.Repeat("x", 129), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.items.Create(ctx, tt.code, tt.label, model.ItemStat{}, tt.price)
			assert.True(t, IsKind(err, KindValidation))
		})
	}
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.items.Create(ctx, 1, "sword", swordStat(), 300)
	require.NoError(t, err)

	name := "great sword"
	item, err := f.items.Update(ctx, 1, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "great sword", item.ItemName)
	assert.Equal(t, int64(10), item.ItemStat.AttackValue(), "stats untouched")
	assert.Equal(t, int64(300), item.ItemPrice)

	item, err = f.items.Update(ctx, 1, nil, &model.ItemStat{Attack: int64Ptr(20)})
	require.NoError(t, err)
	assert.Equal(t, "great sword", item.ItemName)
	assert.Equal(t, int64(20), item.ItemStat.AttackValue())
	assert.Zero(t, item.ItemStat.DefenseValue())

	_, err = f.items.Update(ctx, 1, nil, nil)
	assert.True(t, IsKind(err, KindValidation))

	blank := " "
	_, err = f.items.Update(ctx, 1, &blank, nil)
	assert.True(t, IsKind(err, KindValidation))

	long := strings.Repeat("x", 129)
	_, err = f.items.Update(ctx, 1, &long, nil)
	assert.True(t, IsKind(err, KindValidation))

	longest := strings.Repeat("x", 128)
	item, err = f.items.Update(ctx, 1, &longest, nil)
	require.NoError(t, err)
	assert.Equal(t, longest, item.ItemName)

	_, err = f.items.Update(ctx, 404, &name, nil)
	assert.True(t, IsKind(err, KindNotFound))
}
