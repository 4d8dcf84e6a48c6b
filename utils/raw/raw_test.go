package raw

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 没有权限时死在socket上,有权限时死在查接口上,两条路都必须报错。
func TestNewMissingInterface(t *testing.T) {
	r, err := New("starmetal-none0", syscall.ETH_P_ALL, nil)
	assert.Error(t, err)
	assert.Nil(t, r)
}
