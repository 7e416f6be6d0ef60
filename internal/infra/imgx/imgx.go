package imgx

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"path/filepath"
	"strings"
)

// DecodeBounds 只解码图片头部，返回像素宽高（用于搬运后的完整性校验）。
//
// 约束：
// - 输入允许是 PNG/JPEG（依赖标准库解码器）
// - 不做整图解码：头部合法即认为可读
func DecodeBounds(data []byte) (w, h int, err error) {
	if len(data) == 0 {
		return 0, 0, errors.New("图片数据为空")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("图片尺寸无效")
	}
	return cfg.Width, cfg.Height, nil
}

// IsImagePath 按扩展名判断路径是否指向图片资源。
func IsImagePath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}
