package features

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Payload 发送给预测服务的特征向量，下标与Keys一一对应
type Payload [Count]float64

// Encode 将原始快照转换为数值载荷。
// 空值或无法解析的输入编码为NaN，编码本身不会失败。
func Encode(snapshot [Count]string) Payload {
	var p Payload
	for i, raw := range snapshot {
		p[i] = parseNumber(raw)
	}
	return p
}

func parseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// MarshalJSON 按固定键序输出，非有限值输出为null
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		v := p[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
