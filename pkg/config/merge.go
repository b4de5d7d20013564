package config

import (
	"fmt"
	"reflect"
)

// MergeConfig 将 src 中的非零值覆盖到 dst
// - dst 与 src 都为 nil 时报错
// - 任一为 nil 时返回另一个
// - 结构体/指针/map 递归合并，切片整体覆盖
//
// 注意：零值（false/0/""）不会覆盖默认值，需要显式关闭的布尔开关应设计为反向语义。
func MergeConfig[T any](dst, src *T) (*T, error) {
	if dst == nil && src == nil {
		return nil, fmt.Errorf("both dst and src cannot be nil")
	}
	if dst == nil {
		return src, nil
	}
	if src == nil {
		return dst, nil
	}

	if err := mergeValues(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()); err != nil {
		return nil, err
	}
	return dst, nil
}

func mergeValues(dst, src reflect.Value) error {
	if !src.IsValid() || src.IsZero() {
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		t := src.Type()
		for i := 0; i < src.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := mergeValues(dst.Field(i), src.Field(i)); err != nil {
				return fmt.Errorf("failed to merge field %s: %w", t.Field(i).Name, err)
			}
		}
		return nil

	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		iter := src.MapRange()
		for iter.Next() {
			dst.SetMapIndex(iter.Key(), iter.Value())
		}
		return nil

	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return mergeValues(dst.Elem(), src.Elem())

	default:
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}
