package service

import (
	"testing"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand 依次返回预设值（按 n 取模）
type fixedRand struct {
	values []int
	i      int
}

func (r *fixedRand) Intn(n int) int {
	v := r.values[r.i%len(r.values)]
	r.i++
	return v % n
}

func TestPickTier(t *testing.T) {
	tiers := []TierWeight{
		{Name: "common", Weight: 60},
		{Name: "empty", Weight: 0},
		{Name: "rare", Weight: 30},
		{Name: "legendary", Weight: 10},
	}

	tests := []struct {
		roll int
		want string
	}{
		{0, "common"},
		{59, "common"},
		{60, "rare"},
		{89, "rare"},
		{90, "legendary"},
		{99, "legendary"},
	}
	for _, tc := range tests {
		got, err := PickTier(&fixedRand{values: []int{tc.roll}}, tiers)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "roll %d", tc.roll)
	}

	_, err := PickTier(&fixedRand{values: []int{0}}, []TierWeight{{Name: "x", Weight: 0}})
	assert.Error(t, err)
}

func TestPickTier_Distribution(t *testing.T) {
	r := NewSeededRand(7)
	tiers := []TierWeight{{Name: "a", Weight: 3}, {Name: "b", Weight: 1}}

	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		tier, err := PickTier(r, tiers)
		require.NoError(t, err)
		counts[tier]++
	}
	assert.InDelta(t, 3000, counts["a"], 200)
	assert.InDelta(t, 1000, counts["b"], 200)
}

func TestSelector_Draw(t *testing.T) {
	catalog := model.NewCatalog(testCollectibles)
	tiers := TierTable{
		{Name: "common", Weight: 1, Rank: 1},
		{Name: "mythic", Weight: 1, Rank: 9},
	}

	// 抽中 common：在 common 内均匀抽取
	s := NewSelector(catalog, tiers, &fixedRand{values: []int{0, 0}})
	c, err := s.Draw()
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", c.Name)

	// 抽中没有条目的 mythic：退回全表
	s = NewSelector(catalog, tiers, &fixedRand{values: []int{1, 2}})
	c, err = s.Draw()
	require.NoError(t, err)
	assert.Equal(t, "Mewtwo", c.Name)

	s = NewSelector(model.NewCatalog(nil), tiers, &fixedRand{values: []int{0}})
	_, err = s.Draw()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelector_Find(t *testing.T) {
	s := NewSelector(model.NewCatalog(testCollectibles), nil, NewSeededRand(1))

	c, err := s.Find("  MEW ")
	require.NoError(t, err)
	assert.Equal(t, int32(4), c.ID)

	c, err = s.Find("2")
	require.NoError(t, err)
	assert.Equal(t, "Raichu", c.Name)

	_, err = s.Find("Missingno")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTierTable_Rank(t *testing.T) {
	tiers := DefaultConfig().Tiers
	assert.Equal(t, 1, tiers.Rank("common"))
	assert.Equal(t, 5, tiers.Rank("legendary"))
	assert.Zero(t, tiers.Rank("unknown"))
}

func TestGenerateCode(t *testing.T) {
	r := NewSeededRand(3)
	for i := 0; i < 100; i++ {
		code := GenerateCode(r, SpawnCodeLength)
		require.Len(t, code, SpawnCodeLength)
		for _, ch := range code {
			assert.Contains(t, codeAlphabet, string(ch))
		}
	}
	assert.Equal(t, "AB1C", NormalizeCode("  ab1c\t"))
}
