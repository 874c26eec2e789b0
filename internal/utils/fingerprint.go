package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint 生成参与者在会话内的匿名身份
//
// 同一 NAT 后浏览器相同的参与者会被视为同一人，更换网络或浏览器则得到新身份。
// 空值按 "unknown" 处理。
func Fingerprint(ip, userAgent, sessionID string) string {
	if ip == "" {
		ip = "unknown"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}
	sum := sha256.Sum256([]byte(ip + ":" + userAgent + ":" + sessionID))
	return hex.EncodeToString(sum[:])
}
