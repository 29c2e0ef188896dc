// Package token генерирует непредсказуемые идентификаторы сессий.
//
// Идентификатор сессии — единственный ключ, по которому клиент получает
// оплаченный контент, поэтому генерируется криптографически случайным:
// 16 байт из crypto/rand дают 128 бит энтропии.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New возвращает новый идентификатор сессии: 32 шестнадцатеричных
// символа (128 бит случайности).
func New() (string, error) {
	const op = "token.New"

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hex.EncodeToString(buf), nil
}
