package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup 配置全局 logrus，未知级别回退为 info
func Setup(level, format string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// For 返回带 component 字段的 logger
func For(component string) *log.Entry {
	return log.WithField("component", component)
}

// ShortFingerprint 截短指纹用于日志输出
func ShortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}
