package domain

// MovedFileRecord 记录一次资源搬离（live → staging）的完整路径对。
//
// 生命周期：搬离时创建；恢复成功即从列表删除；恢复失败则整体落入
// failed_resources.json 账本，等待下一次流水线运行重试。
type MovedFileRecord struct {
	OriginalPath string `json:"originalPath"`
	TempPath     string `json:"tempPath"`
	MetaPath     string `json:"metaPath,omitempty"`
	TempMetaPath string `json:"tempMetaPath,omitempty"`
	ResourceID   string `json:"resourceId"`
	AssetURL     string `json:"assetUrl,omitempty"`
}

// BackupInfo 记录一次 pre-build 的本地化文件备份（单次构建生命周期内有效）。
// OriginalData 是备份文件被外部删除时的最后防线（恢复阶段可从内存重建）。
type BackupInfo struct {
	OriginalPath string
	BackupPath   string
	OriginalData *Dataset
}
