package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FormEntry 表单中的一项（字段名 -> 值）
type FormEntry struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

// FormData 有序的表单数据
// JSON 编码为对象并保留键的顺序；BSON 以数组形式保存
type FormData []FormEntry

// Get 获取指定键的值
func (d FormData) Get(key string) (string, bool) {
	for _, entry := range d {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// Set 设置键值，已存在的键原位覆盖
func (d FormData) Set(key, value string) FormData {
	for i, entry := range d {
		if entry.Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, FormEntry{Key: key, Value: value})
}

// Contains 任意值中包含子串（忽略大小写）
func (d FormData) Contains(query string) bool {
	query = strings.ToLower(query)
	for _, entry := range d {
		if strings.Contains(strings.ToLower(entry.Value), query) {
			return true
		}
	}
	return false
}

// MarshalJSON 按插入顺序输出对象
func (d FormData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解析对象并保留键的顺序，非字符串值按原始 JSON 文本保存
func (d *FormData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("form data must be a JSON object")
	}

	result := FormData{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("form data key must be a string")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		result = append(result, FormEntry{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*d = result
	return nil
}
