package prodamus

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignField имя поля с подписью, в подписываемую строку оно не входит
const SignField = "sign"

// Sign считает HMAC-SHA256 по строке "k1:v1;k2:v2", ключи отсортированы
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись за постоянное время
func Verify(params map[string]string, secret, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(params, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// FlattenForm превращает url.Values в плоскую карту, для повторяющихся ключей берется первое значение
func FlattenForm(form url.Values) map[string]string {
	result := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			result[k] = v[0]
		} else {
			result[k] = ""
		}
	}
	return result
}
