package utils

import (
	"crypto/rand"
	"math/big"
)

// JoinCodeAlphabet 去掉了投影上容易看错的 0、1、I、O
const JoinCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateJoinCode 从 JoinCodeAlphabet 随机生成 n 位加入码
func GenerateJoinCode(n int) (string, error) {
	max := big.NewInt(int64(len(JoinCodeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = JoinCodeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
