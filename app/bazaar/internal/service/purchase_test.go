package service

import (
	"sync"
	"testing"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// warnRecorder 记录 Warn 级别日志
type warnRecorder struct {
	*logger.NoopLogger

	mu    sync.Mutex
	warns []string
}

func (l *warnRecorder) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestCollectibleOf(t *testing.T) {
	catalog := model.NewCatalog(testCollectibles[:1])
	l := &warnRecorder{NoopLogger: logger.NewNoop()}

	c := collectibleOf(catalog, l, pikachu)
	require.NotNil(t, c)
	assert.Equal(t, "Pikachu", c.Name)
	assert.Empty(t, l.warns)

	assert.Nil(t, collectibleOf(catalog, l, mewtwo))
	assert.Equal(t, []string{"collectible missing from catalog"}, l.warns)
}
