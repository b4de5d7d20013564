package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveSpawn_Matches(t *testing.T) {
	sp := &ActiveSpawn{Collectible: Collectible{ID: 1, Name: "Pikachu"}}

	assert.True(t, sp.Matches("Pikachu"))
	assert.True(t, sp.Matches("PIKACHU"))
	assert.True(t, sp.Matches("pikachu"))
	assert.False(t, sp.Matches("  PIKACHU "))
	assert.False(t, sp.Matches("Pika"))
	assert.False(t, sp.Matches(""))
}

func TestActiveSpawn_StaleAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sp := &ActiveSpawn{CreatedAt: created}

	assert.False(t, sp.StaleAt(created.Add(59*time.Minute), time.Hour))
	assert.True(t, sp.StaleAt(created.Add(time.Hour), time.Hour))
}
