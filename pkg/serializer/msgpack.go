// pkg/serializer/msgpack.go
package serializer

import (
	"bytes"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/valyala/bytebufferpool"
)

// msgpackHandle 编解码配置：RawToString=true，time.Time 按 msgpack 时间扩展编码
var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]interface{}{})
	msgpackHandle.RawToString = true
	msgpackHandle.WriteExt = true
}

// Encode 使用 msgpack 编码数据，编码缓冲区取自 bytebufferpool
func Encode(v interface{}) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := codec.NewEncoder(buf, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}

	// buf 会被回收复用
	result := make([]byte, buf.Len())
	copy(result, buf.B)
	return result, nil
}

// Decode 使用 msgpack 解码数据
func Decode(data []byte, v interface{}) error {
	return codec.NewDecoder(bytes.NewReader(data), msgpackHandle).Decode(v)
}
